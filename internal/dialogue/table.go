package dialogue

import (
	"github.com/m3rciful/relaybot/internal/messaging"
	"github.com/m3rciful/relaybot/internal/session"
)

// Input is an event reduced to what the state machine cares about.
type Input string

const (
	InputSelectOrder    Input = "select_order"
	InputSelectSupport  Input = "select_support"
	InputSelectReview   Input = "select_review"
	InputSelectPositive Input = "select_positive"
	InputSelectNegative Input = "select_negative"
	InputText           Input = "text"
	InputMedia          Input = "media"
	InputUnsupported    Input = "unsupported"
	InputCancel         Input = "cancel"
)

// Inputs lists every input, in table order.
var Inputs = []Input{
	InputSelectOrder, InputSelectSupport, InputSelectReview,
	InputSelectPositive, InputSelectNegative,
	InputText, InputMedia, InputUnsupported, InputCancel,
}

// States lists every session state.
var States = []session.State{
	session.StateIdle,
	session.StateOrderAwaitingItem,
	session.StateSupportAwaitingMessage,
	session.StateReviewAwaitingType,
	session.StateReviewAwaitingText,
}

// Action is the side effect attached to a transition.
type Action string

const (
	ActPromptOrder      Action = "prompt_order"
	ActPromptSupport    Action = "prompt_support"
	ActPromptReviewType Action = "prompt_review_type"
	ActPromptReviewText Action = "prompt_review_text"
	ActAcceptOrder      Action = "accept_order"
	ActRelaySupport     Action = "relay_support"
	ActSubmitReview     Action = "submit_review"
	ActReprompt         Action = "reprompt"
	ActCancel           Action = "cancel"
	ActIgnore           Action = "ignore"
	ActStale            Action = "stale"
)

// Transition is one cell of the table.
type Transition struct {
	Next   session.State
	Action Action
}

var transitions = buildTable()

func buildTable() map[session.State]map[Input]Transition {
	t := make(map[session.State]map[Input]Transition, len(States))
	for _, st := range States {
		row := map[Input]Transition{
			// Menu selections are valid anywhere and replace the session.
			InputSelectOrder:   {session.StateOrderAwaitingItem, ActPromptOrder},
			InputSelectSupport: {session.StateSupportAwaitingMessage, ActPromptSupport},
			InputSelectReview:  {session.StateReviewAwaitingType, ActPromptReviewType},
			InputCancel:        {session.StateIdle, ActCancel},
			// A polarity button only means something while the type is being chosen.
			InputSelectPositive: {st, ActStale},
			InputSelectNegative: {st, ActStale},
			InputText:           {st, ActIgnore},
			InputMedia:          {st, ActIgnore},
			InputUnsupported:    {st, ActIgnore},
		}
		t[st] = row
	}

	order := t[session.StateOrderAwaitingItem]
	order[InputText] = Transition{session.StateIdle, ActAcceptOrder}
	order[InputMedia] = Transition{session.StateOrderAwaitingItem, ActReprompt}
	order[InputUnsupported] = Transition{session.StateOrderAwaitingItem, ActReprompt}

	support := t[session.StateSupportAwaitingMessage]
	support[InputText] = Transition{session.StateIdle, ActRelaySupport}
	support[InputMedia] = Transition{session.StateIdle, ActRelaySupport}

	reviewType := t[session.StateReviewAwaitingType]
	reviewType[InputSelectPositive] = Transition{session.StateReviewAwaitingText, ActPromptReviewText}
	reviewType[InputSelectNegative] = Transition{session.StateReviewAwaitingText, ActPromptReviewText}

	reviewText := t[session.StateReviewAwaitingText]
	reviewText[InputText] = Transition{session.StateIdle, ActSubmitReview}
	reviewText[InputMedia] = Transition{session.StateReviewAwaitingText, ActReprompt}
	reviewText[InputUnsupported] = Transition{session.StateReviewAwaitingText, ActReprompt}

	return t
}

// Lookup returns the transition for (state, input). Unknown states behave like idle.
func Lookup(state session.State, in Input) Transition {
	row, ok := transitions[state]
	if !ok {
		row = transitions[session.StateIdle]
	}
	tr, ok := row[in]
	if !ok {
		return Transition{state, ActIgnore}
	}
	return tr
}

var selectionInputs = map[string]Input{
	ActionStartOrder:     InputSelectOrder,
	ActionStartSupport:   InputSelectSupport,
	ActionStartReview:    InputSelectReview,
	ActionReviewPositive: InputSelectPositive,
	ActionReviewNegative: InputSelectNegative,
	ActionCancel:         InputCancel,
}

// InputFor maps an event to an input; ok is false for events the engine does not own.
func InputFor(ev messaging.Event) (Input, bool) {
	switch ev.Kind {
	case messaging.EventSelection:
		in, ok := selectionInputs[ev.Action]
		return in, ok
	case messaging.EventContent:
		switch {
		case ev.Content.IsText():
			return InputText, true
		case ev.Content.Supported():
			return InputMedia, true
		default:
			return InputUnsupported, true
		}
	}
	return "", false
}

// polarityOf maps a polarity input to its scratch value.
func polarityOf(in Input) string {
	if in == InputSelectPositive {
		return PolarityPositive
	}
	return PolarityNegative
}
