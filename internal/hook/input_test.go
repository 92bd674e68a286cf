package hook

import (
	"errors"
	"strings"
	"testing"

	"github.com/JamesPrial/liferpg/internal/engine"
)

func Test_ReadActionInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      string
		wantNil    bool
		wantErr    bool
		wantAction string
		wantTaskID int64
		wantUser   string
	}{
		{
			name:       "complete action",
			input:      `{"action":"complete","user":"ada","task_id":3}`,
			wantAction: ActionComplete,
			wantTaskID: 3,
			wantUser:   "ada",
		},
		{
			name:       "action is case and space insensitive",
			input:      `{"action":"  START ","task_id":9}`,
			wantAction: ActionStart,
			wantTaskID: 9,
		},
		{
			name:       "create action",
			input:      `{"action":"create","title":"Run","category_id":1,"frequency":"daily","xp_reward":20}`,
			wantAction: ActionCreate,
		},
		{
			name:    "unknown action returns nil nil",
			input:   `{"action":"explode","task_id":1}`,
			wantNil: true,
		},
		{
			name:    "missing action treated as no-op",
			input:   `{"task_id":1}`,
			wantNil: true,
		},
		{
			name:    "invalid JSON returns error",
			input:   `{not json}`,
			wantNil: true,
			wantErr: true,
		},
		{
			name:    "empty input returns error",
			input:   ``,
			wantNil: true,
			wantErr: true,
		},
		{
			name:    "wrong type for task_id returns error",
			input:   `{"action":"start","task_id":"three"}`,
			wantNil: true,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ReadActionInput(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadActionInput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (got == nil) != tt.wantNil {
				t.Fatalf("ReadActionInput() = %+v, wantNil %v", got, tt.wantNil)
			}
			if got == nil {
				return
			}
			if got.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", got.Action, tt.wantAction)
			}
			if got.TaskID != tt.wantTaskID {
				t.Errorf("TaskID = %d, want %d", got.TaskID, tt.wantTaskID)
			}
			if got.User != tt.wantUser {
				t.Errorf("User = %q, want %q", got.User, tt.wantUser)
			}
		})
	}
}

func Test_ActionInput_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        ActionInput
		wantField string
	}{
		{"start with id", ActionInput{Action: ActionStart, TaskID: 1}, ""},
		{"complete without id", ActionInput{Action: ActionComplete}, "task_id"},
		{"delete negative id", ActionInput{Action: ActionDelete, TaskID: -2}, "task_id"},
		{"create ok", ActionInput{Action: ActionCreate, Title: "Run", CategoryID: 1, Frequency: "daily"}, ""},
		{"create blank title", ActionInput{Action: ActionCreate, Title: "  ", CategoryID: 1, Frequency: "daily"}, "title"},
		{"create no category", ActionInput{Action: ActionCreate, Title: "Run", Frequency: "daily"}, "category_id"},
		{"create no frequency", ActionInput{Action: ActionCreate, Title: "Run", CategoryID: 1}, "frequency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.in.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			var ve *engine.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.wantField {
				t.Errorf("Validate() = %v, want ValidationError on %q", err, tt.wantField)
			}
		})
	}
}
