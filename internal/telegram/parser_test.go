package telegram

import (
	"testing"
)

func TestParseCommand_Simple(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantCmd string
		wantErr bool
	}{
		{"summary", "/summary", "summary", false},
		{"uppercase", "/SUMMARY", "summary", false},
		{"with spaces", "/help  ", "help", false},
		{"bot suffix", "/pending@guard_bot", "pending", false},
		{"russian", "/сводка", "summary", false},
		{"not a command", "summary", "", true},
		{"bare slash", "/", "", true},
		{"unknown", "/buy BTC", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := ParseCommand(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCommand() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && args.Command != tt.wantCmd {
				t.Errorf("ParseCommand() command = %v, want %v", args.Command, tt.wantCmd)
			}
		})
	}
}

func TestParseCommand_Pending(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCount int
		wantErr   bool
	}{
		{"default", "/pending", 10, false},
		{"with count", "/pending 5", 5, false},
		{"checkpoints", "/checkpoints 3", 3, false},
		{"zero", "/pending 0", 0, true},
		{"too many", "/pending 500", 0, true},
		{"not a number", "/pending all", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := ParseCommand(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCommand() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && args.Count != tt.wantCount {
				t.Errorf("ParseCommand() count = %v, want %v", args.Count, tt.wantCount)
			}
		})
	}
}

func TestParseCommand_Review(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCmd  string
		wantID   string
		wantText string
		wantErr  bool
	}{
		{"approve", "/approve req-1", "approve", "req-1", "", false},
		{"approve with feedback", "/approve req-1 looks fine", "approve", "req-1", "looks fine", false},
		{"approve russian", "/подтвердить req-1", "approve", "req-1", "", false},
		{"approve no id", "/approve", "", "", "", true},
		{"reject", "/reject req-2 too large", "reject", "req-2", "too large", false},
		{"reject needs reason", "/reject req-2", "", "", "", true},
		{"rollback", "/rollback 0b6f2c1e-8a41-4a36-9d0b-5d1c2f3e4a5b", "rollback", "0b6f2c1e-8a41-4a36-9d0b-5d1c2f3e4a5b", "", false},
		{"rollback no id", "/rollback", "", "", "", true},
		{"bad id", "/approve req;drop", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := ParseCommand(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCommand() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if args.Command != tt.wantCmd {
				t.Errorf("ParseCommand() command = %v, want %v", args.Command, tt.wantCmd)
			}
			if args.ID != tt.wantID {
				t.Errorf("ParseCommand() id = %v, want %v", args.ID, tt.wantID)
			}
			if args.Text != tt.wantText {
				t.Errorf("ParseCommand() text = %q, want %q", args.Text, tt.wantText)
			}
		})
	}
}

func TestParseCommand_ModeAndPanicStop(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantMode   string
		wantAction string
		wantErr    bool
	}{
		{"mode status", "/mode", "", "", false},
		{"mode pilot", "/mode PILOT", "pilot", "", false},
		{"mode invalid", "/mode yolo", "", "", true},
		{"panicstop status", "/panicstop", "", "status", false},
		{"panicstop on", "/panicstop on", "", "on", false},
		{"panicstop russian off", "/стоп выкл", "", "off", false},
		{"panicstop invalid", "/panicstop maybe", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := ParseCommand(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCommand() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if args.Mode != tt.wantMode {
				t.Errorf("ParseCommand() mode = %v, want %v", args.Mode, tt.wantMode)
			}
			if args.Action != tt.wantAction {
				t.Errorf("ParseCommand() action = %v, want %v", args.Action, tt.wantAction)
			}
		})
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantCmd string
		wantID  string
		wantErr bool
	}{
		{"approve", "approve:req-1", "approve", "req-1", false},
		{"reject", "reject:req-2", "reject", "req-2", false},
		{"empty id", "approve:", "", "", true},
		{"unknown", "confirm_sell_50", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, id, err := ParseCallback(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCallback() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if cmd != tt.wantCmd || id != tt.wantID {
				t.Errorf("ParseCallback() = %v %v, want %v %v", cmd, id, tt.wantCmd, tt.wantID)
			}
		})
	}
}

func TestNormalizeAction(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"on", "on"},
		{"ВКЛ", "on"},
		{"yes", "on"},
		{"выключить", "off"},
		{"no", "off"},
		{"maybe", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizeAction(tt.input); got != tt.want {
				t.Errorf("normalizeAction(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
