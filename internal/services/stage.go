package services

import (
	"errors"
	"fmt"

	"alfredoptarigan/readysetrole/internal/models"
)

type StageEvent string

const (
	EventInputsReady   StageEvent = "inputs-ready"
	EventInputsCleared StageEvent = "inputs-cleared"
	EventTailor        StageEvent = "tailor"
	EventPacksReceived StageEvent = "packs-received"
	EventChoice        StageEvent = "choice"
	EventDelivered     StageEvent = "delivered"
	EventFailed        StageEvent = "failed"
	EventReset         StageEvent = "reset"
)

var ErrInvalidTransition = errors.New("invalid stage transition")

type transitionKey struct {
	from  models.Stage
	event StageEvent
}

var stageTransitions = map[transitionKey]models.Stage{
	{models.StageIdle, EventInputsReady}:   models.StageOptions,
	{models.StageOptions, EventInputsReady}: models.StageOptions,

	{models.StageOptions, EventInputsCleared}:        models.StageIdle,
	{models.StageIdle, EventInputsCleared}:           models.StageIdle,
	{models.StageAwaitingChoice, EventInputsCleared}: models.StageIdle,
	{models.StageDelivered, EventInputsCleared}:      models.StageIdle,

	{models.StageIdle, EventTailor}:           models.StageAwaitingPacks,
	{models.StageOptions, EventTailor}:        models.StageAwaitingPacks,
	{models.StageAwaitingChoice, EventTailor}: models.StageAwaitingPacks,
	{models.StageDelivered, EventTailor}:      models.StageAwaitingPacks,

	{models.StageAwaitingPacks, EventPacksReceived}: models.StageAwaitingChoice,
	{models.StageAwaitingPacks, EventFailed}:        models.StageOptions,

	{models.StageAwaitingChoice, EventChoice}: models.StageApplying,
	{models.StageDelivered, EventChoice}:      models.StageApplying,

	{models.StageApplying, EventDelivered}: models.StageDelivered,
	{models.StageApplying, EventFailed}:    models.StageAwaitingChoice,
}

// NextStage returns the stage reached from `from` on `event`. Reset is legal
// from anywhere.
func NextStage(from models.Stage, event StageEvent) (models.Stage, error) {
	if event == EventReset {
		return models.StageIdle, nil
	}

	to, ok := stageTransitions[transitionKey{from: from, event: event}]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, from, event)
	}

	return to, nil
}

// Transition applies event to the session in place.
func Transition(session *models.Session, event StageEvent) error {
	to, err := NextStage(session.Stage, event)
	if err != nil {
		return err
	}
	session.Stage = to
	return nil
}

// AcceptsSelection reports whether a numeric reply is read as a pack choice.
func AcceptsSelection(stage models.Stage) bool {
	return stage == models.StageAwaitingChoice || stage == models.StageDelivered
}

// IsBusy reports whether a remote call is in flight for this session.
func IsBusy(stage models.Stage) bool {
	return stage == models.StageAwaitingPacks || stage == models.StageApplying
}
