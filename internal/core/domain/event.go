package domain

import "fmt"

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

// StateDocumentUpdateEvent is a whole JSON state document published on the
// state topic of StateId.
type StateDocumentUpdateEvent struct {
	SensorUpdateEventMixIn
	Payload []byte
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}
