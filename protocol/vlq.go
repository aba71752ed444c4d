package protocol

import "pitimer/core"

// EncodeVLQInt encodes a signed integer to VLQ format.
// Values in [-32, 96) take one byte; each further byte adds 7 bits.
func EncodeVLQInt(output OutputBuffer, v int32) {
	// Output bytes from most significant to least
	if !(-(1<<26) <= v && v < (3<<26)) {
		output.Output([]byte{byte((v>>28)&0x7F) | 0x80})
	}
	if !(-(1<<19) <= v && v < (3<<19)) {
		output.Output([]byte{byte((v>>21)&0x7F) | 0x80})
	}
	if !(-(1<<12) <= v && v < (3<<12)) {
		output.Output([]byte{byte((v>>14)&0x7F) | 0x80})
	}
	if !(-(1<<5) <= v && v < (3<<5)) {
		output.Output([]byte{byte((v>>7)&0x7F) | 0x80})
	}
	output.Output([]byte{byte(v & 0x7F)})
}

// EncodeVLQUint encodes an unsigned integer to VLQ format
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt decodes a VLQ signed integer from the data slice.
// The data slice is advanced past the consumed bytes.
func DecodeVLQInt(data *[]byte) (int32, error) {
	if len(*data) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := uint32((*data)[0])
	*data = (*data)[1:]

	v := c & 0x7F
	// Sign extension for negative numbers
	if (c & 0x60) == 0x60 {
		v |= ^uint32(0x1F)
	}

	// Read continuation bytes
	for n := 0; c&0x80 != 0; n++ {
		if n == 4 {
			return 0, ErrInvalidVLQ
		}
		if len(*data) == 0 {
			return 0, ErrBufferTooSmall
		}
		c = uint32((*data)[0])
		*data = (*data)[1:]
		v = (v << 7) | (c & 0x7F)
	}

	return int32(v), nil
}

// DecodeVLQUint decodes a VLQ unsigned integer from the data slice
func DecodeVLQUint(data *[]byte) (uint32, error) {
	val, err := DecodeVLQInt(data)
	return uint32(val), err
}

// EncodeMicros encodes a 64-bit counter value as low and high words
func EncodeMicros(output OutputBuffer, t core.Micros) {
	EncodeVLQUint(output, uint32(t))
	EncodeVLQUint(output, uint32(t>>32))
}

// DecodeMicros decodes a counter value written by EncodeMicros
func DecodeMicros(data *[]byte) (core.Micros, error) {
	lo, err := DecodeVLQUint(data)
	if err != nil {
		return 0, err
	}
	hi, err := DecodeVLQUint(data)
	if err != nil {
		return 0, err
	}
	return core.Micros(uint64(hi)<<32 | uint64(lo)), nil
}
