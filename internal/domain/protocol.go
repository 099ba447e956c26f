package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidPlaybackState = errors.New("invalid playback state")

type MessageType string

const (
	TypeJoin     MessageType = "join"
	TypeLeave    MessageType = "leave"
	TypePlay     MessageType = "play"
	TypePause    MessageType = "pause"
	TypeSeek     MessageType = "seek"
	TypeStatus   MessageType = "status"
	TypeID       MessageType = "id"
	TypeMetadata MessageType = "metadata"
)

type PlaybackState int

const (
	Paused PlaybackState = iota
	Playing
)

func (s PlaybackState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("PlaybackState(%d)", int(s))
	}
}

func (s PlaybackState) MarshalText() ([]byte, error) {
	switch s {
	case Playing, Paused:
		return []byte(s.String()), nil
	default:
		return nil, ErrInvalidPlaybackState
	}
}

func (s *PlaybackState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "playing":
		*s = Playing
	case "paused":
		*s = Paused
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPlaybackState, text)
	}

	return nil
}

// Inbound is an event consumed by a room's actor.
type Inbound interface {
	Type() MessageType
}

// Outbound is an event delivered to watcher connections.
type Outbound interface {
	Type() MessageType
}

type Join struct {
	Name string `json:"name"`
}

func (Join) Type() MessageType { return TypeJoin }

type Leave struct {
	ID uint32 `json:"id"`
}

func (Leave) Type() MessageType { return TypeLeave }

// Control is a play, pause or seek transition. The same value travels inbound
// from the requester and outbound to every watcher.
type Control struct {
	Kind      MessageType `json:"-"`
	ID        uint32      `json:"id"`
	RequestID uint32      `json:"requestId"`
	Time      float64     `json:"time"`
}

func (c Control) Type() MessageType { return c.Kind }

func NewPlay(id, requestID uint32, time float64) Control {
	return Control{Kind: TypePlay, ID: id, RequestID: requestID, Time: time}
}

func NewPause(id, requestID uint32, time float64) Control {
	return Control{Kind: TypePause, ID: id, RequestID: requestID, Time: time}
}

func NewSeek(id, requestID uint32, time float64) Control {
	return Control{Kind: TypeSeek, ID: id, RequestID: requestID, Time: time}
}

type Status struct {
	ID            uint32        `json:"id"`
	Position      float64       `json:"position"`
	Buffered      float64       `json:"buffered"`
	PlaybackState PlaybackState `json:"playbackState"`
}

func (Status) Type() MessageType { return TypeStatus }

// Identity tells a connection which watcher id it was assigned.
type Identity struct {
	ID uint32 `json:"id"`
}

func (Identity) Type() MessageType { return TypeID }

type Metadata struct {
	Snapshot
}

func (Metadata) Type() MessageType { return TypeMetadata }

type envelope struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

// Encode wraps msg into the {"type", "payload"} envelope used on the wire.
func Encode(msg Outbound) ([]byte, error) {
	data, err := json.Marshal(&envelope{
		Type:    msg.Type(),
		Payload: msg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", msg.Type(), err)
	}

	return data, nil
}
