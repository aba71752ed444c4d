package core

// utoa converts an unsigned integer to a string without using fmt.
// Scheduler events are formatted in interrupt-free context only.
func utoa(n uint64) string {
	if n == 0 {
		return "0"
	}

	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}
