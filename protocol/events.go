package protocol

import "pitimer/core"

// EncodeEvent appends one scheduler event to the output
func EncodeEvent(output OutputBuffer, ev core.Event) {
	EncodeVLQUint(output, uint32(ev.Kind))
	EncodeVLQUint(output, ev.Index)
	EncodeMicros(output, ev.Due)
	EncodeMicros(output, ev.At)
}

// DecodeEvent decodes one scheduler event and advances data past it
func DecodeEvent(data *[]byte) (core.Event, error) {
	var ev core.Event

	kind, err := DecodeVLQUint(data)
	if err != nil {
		return ev, err
	}
	if kind < uint32(core.EvtSchedule) || kind > uint32(core.EvtCollision) {
		return ev, ErrUnknownEvent
	}
	ev.Kind = core.EventKind(kind)

	if ev.Index, err = DecodeVLQUint(data); err != nil {
		return ev, err
	}
	if ev.Due, err = DecodeMicros(data); err != nil {
		return ev, err
	}
	if ev.At, err = DecodeMicros(data); err != nil {
		return ev, err
	}
	return ev, nil
}

// DecodeEvents decodes every event in a frame payload
func DecodeEvents(payload []byte) ([]core.Event, error) {
	var events []core.Event
	for len(payload) > 0 {
		ev, err := DecodeEvent(&payload)
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}
