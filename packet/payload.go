package packet

// StepPayload returns n bytes where byte i is step*i modulo 256.
func StepPayload(step, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(step * i)
	}
	return b
}

// SamePayload returns n copies of value.
func SamePayload(value byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = value
	}
	return b
}

// CounterPayload returns n consecutive bytes starting at start, wrapping at
// 256. It matches the running per-endpoint payload of a session.
func CounterPayload(start byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}
