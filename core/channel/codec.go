package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned for a kind this side does not understand on a
// known topic. Consumers ignore such messages.
var ErrUnknownKind = errors.New("unknown message kind")

// DecodeError describes a message that could not be decoded.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func badRequest(msg, param string) error {
	return &DecodeError{Code: "bad_request", Message: msg, Param: param}
}

func unsupported(msg, param string) error {
	return &DecodeError{Code: "unsupported", Message: msg, Param: param}
}

// Encode serializes msg into its flat wire form.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, badRequest("message is required", "")
	}
	if !Known(msg.Topic(), msg.Kind()) {
		return nil, unsupported(fmt.Sprintf("kind %q is not defined for topic %q", msg.Kind(), msg.Topic()), "type")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", msg.Kind(), err)
	}
	return data, nil
}

// Decode parses a wire message. Unknown kinds on a known topic yield
// ErrUnknownKind; unknown topics and malformed payloads yield a DecodeError.
func Decode(data []byte) (Message, error) {
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, badRequest("invalid json", "")
	}
	header.Channel = Topic(strings.TrimSpace(string(header.Channel)))
	header.Type = Kind(strings.TrimSpace(string(header.Type)))
	if header.Channel == "" {
		return nil, badRequest("topic is required", "topic")
	}
	if header.Type == "" {
		return nil, badRequest("type is required", "type")
	}
	if _, ok := topics[header.Channel]; !ok {
		return nil, unsupported(fmt.Sprintf("unknown topic %q", header.Channel), "topic")
	}
	if !Known(header.Channel, header.Type) {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownKind, header.Type, header.Channel)
	}

	var (
		msg Message
		err error
	)
	switch header.Channel {
	case TopicTimer:
		msg, err = decodeInto[TimerMessage](data)
	case TopicCameraRequest:
		msg, err = decodeInto[CameraMessage](data)
	case TopicRecipe:
		msg, err = decodeInto[RecipeMessage](data)
	case TopicSuggestions:
		msg, err = decodeInto[SuggestionsMessage](data)
	case TopicGroceryList:
		msg, err = decodeInto[GroceryListMessage](data)
	case TopicDishSelection:
		var selection SelectDishMessage
		if selection, err = decodeInto[SelectDishMessage](data); err == nil {
			selection.DishID = strings.TrimSpace(selection.DishID)
			if selection.DishID == "" {
				return nil, badRequest("dish_id is required", "dish_id")
			}
			msg = selection
		}
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func decodeInto[T any](data []byte) (T, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, badRequest(err.Error(), "")
	}
	return msg, nil
}
