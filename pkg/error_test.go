package pkg

import (
	"errors"
	"testing"
)

func TestFaultKind_String(t *testing.T) {
	tests := []struct {
		kind FaultKind
		want string
	}{
		{FaultNone, "none"},
		{FaultTimeout, "timeout"},
		{FaultContention, "contention"},
		{FaultLength, "length"},
		{FaultContent, "content"},
		{FaultOverrun, "overrun"},
		{FaultKind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("FaultKind.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFaultKind_Error(t *testing.T) {
	tests := []struct {
		kind    FaultKind
		wantErr error
	}{
		{FaultNone, nil},
		{FaultTimeout, ErrTimeout},
		{FaultContention, ErrContention},
		{FaultLength, ErrLength},
		{FaultContent, ErrContent},
		{FaultOverrun, ErrOverrun},
		{FaultKind(42), ErrProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := tt.kind.Error()
			if tt.wantErr == nil && err != nil {
				t.Errorf("FaultKind.Error() = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("FaultKind.Error() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSentinelErrors(t *testing.T) {
	errs := []error{
		ErrTimeout,
		ErrContention,
		ErrLength,
		ErrContent,
		ErrOverrun,
		ErrProtocol,
		ErrInvalidParameter,
		ErrPacketTooShort,
		ErrUnknownPID,
		ErrBufferTooSmall,
		ErrNotFound,
	}

	for i, err1 := range errs {
		if err1 == nil {
			t.Errorf("error %d is nil", i)
			continue
		}
		for j, err2 := range errs {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("error %d and %d are equal", i, j)
			}
		}
	}
}
