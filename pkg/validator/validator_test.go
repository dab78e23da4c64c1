package validator

import (
	"testing"

	"github.com/google/uuid"
)

type phoneInput struct {
	Phone string `validate:"required,in_phone"`
}

type refInput struct {
	CustomerID uuid.UUID `validate:"uuid_required"`
}

func TestInPhone(t *testing.T) {
	cases := []struct {
		phone string
		ok    bool
	}{
		{"9876543210", true},
		{"+91 98765 43210", true},
		{"12345", false},
		{"", false},
	}
	for _, tc := range cases {
		errs := ValidateStruct(phoneInput{Phone: tc.phone})
		if (len(errs) == 0) != tc.ok {
			t.Fatalf("%q: expected ok=%v, got %v", tc.phone, tc.ok, errs)
		}
	}
}

func TestUUIDRequired(t *testing.T) {
	if errs := ValidateStruct(refInput{}); len(errs) != 1 || errs[0].Tag != "uuid_required" {
		t.Fatalf("expected uuid_required failure, got %v", errs)
	}
	if errs := ValidateStruct(refInput{CustomerID: uuid.New()}); len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
}
