package hotkey

import (
	"reflect"
	"testing"
)

func TestParseCombo(t *testing.T) {
	cases := []struct {
		combo string
		want  []string
	}{
		{"F2", []string{"f2"}},
		{"Ctrl+Shift+S", []string{"ctrl", "shift", "s"}},
		{" ctrl + q ", []string{"ctrl", "q"}},
		{"", nil},
		{"+", nil},
	}

	for _, c := range cases {
		if got := parseCombo(c.combo); !reflect.DeepEqual(got, c.want) {
			t.Errorf("parseCombo(%q) = %v, want %v", c.combo, got, c.want)
		}
	}
}

func TestListenValidation(t *testing.T) {
	if err := Listen("", func() {}); err == nil {
		t.Error("Expected an error for an empty combination")
	}
	if err := Listen("F2", nil); err == nil {
		t.Error("Expected an error for a nil callback")
	}
}
