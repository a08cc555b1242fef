package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevel(t *testing.T) {
	defer SetLevel("info")
	if err := SetLevel("debug"); err != nil {
		t.Fatal(err)
	}
	if GetLevel() != "debug" {
		t.Errorf("GetLevel() = %q, want debug", GetLevel())
	}
	if !At("debug") {
		t.Errorf("At(debug) = false, want true")
	}
}

func TestChannelMask(t *testing.T) {
	defer SetDebugMask(0)
	defer SetLevel("info")
	SetLevel("debug")

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	Chan(ChannelRing, "ring event")
	if buf.Len() != 0 {
		t.Errorf("Chan wrote output for disabled channel: %q", buf.String())
	}

	SetDebugMask(ChannelRing)
	Chan(ChannelRing, "ring event")
	if !strings.Contains(buf.String(), "ring event") {
		t.Errorf("Chan did not write output for enabled channel")
	}

	buf.Reset()
	Chan(ChannelWire, "wire event")
	if buf.Len() != 0 {
		t.Errorf("Chan wrote output for still-disabled channel: %q", buf.String())
	}
}
