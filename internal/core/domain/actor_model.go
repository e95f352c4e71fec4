package domain

import "time"

// ReadUnitsRequest asks the BMU actor for one snapshot of every configured unit.
type ReadUnitsRequest struct {
	ActorRequestMixIn
}

type ReadUnitsResponse struct {
	ActorResponseMixIn
	Readings []UnitReading
}

// PublishDecisionRequest carries the outcome of one completed decision cycle.
// Publishers must answer with a PublishDecisionResponse.
type PublishDecisionRequest struct {
	ActorRequestMixIn
	Decision Decision
}

type PublishDecisionResponse struct {
	ActorResponseMixIn
	Publisher string
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// CycleStatusRequest queries the cycle actor for its progress.
type CycleStatusRequest struct {
	ActorRequestMixIn
}

type CycleStatusResponse struct {
	ActorResponseMixIn
	CompletedCycles uint64
	AbandonedCycles uint64
	DroppedTicks    uint64
	LastDecision    *Decision
	LastCompletedAt time.Time
	LastPublishErr  error
}
