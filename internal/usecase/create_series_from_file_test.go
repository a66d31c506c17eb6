package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/runoshun/taskcal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const importFile = `
series:
  - title: Standup
    date: 2024-03-04
    time: "09:00"
    duration: 15
    repeat: {freq: weekly, count: 4}
  - title: Dentist
    date: 2024-03-07
    time: "14:30"
    timezone: Europe/Berlin
    duration: 60
`

func TestCreateSeriesFromFile_Execute(t *testing.T) {
	f := newFixture()
	uc := NewCreateSeriesFromFile(f.store, f.ids, f.clock, f.logger, f.limits)

	out, err := uc.Execute(context.Background(), CreateSeriesFromFileInput{
		ActorID:         "alice",
		Content:         importFile,
		DefaultTimezone: "UTC",
	})
	require.NoError(t, err)
	require.Len(t, out.Tasks, 2)

	standup := f.store.Tasks["id-1"]
	require.NotNil(t, standup)
	assert.Equal(t, "UTC", standup.Timezone)
	assert.Equal(t, first, standup.DTStart)
	assert.Equal(t, domain.AfterCount(4), standup.Rule.End)

	dentist := f.store.Tasks["id-2"]
	require.NotNil(t, dentist)
	assert.Nil(t, dentist.Rule)
	assert.Equal(t, ts("2024-03-07T13:30:00Z"), dentist.DTStart)
	assert.Equal(t, 1, f.store.Commits)

	assert.Len(t, f.agenda(t), 5)
}

func TestCreateSeriesFromFile_DryRun(t *testing.T) {
	f := newFixture()
	uc := NewCreateSeriesFromFile(f.store, f.ids, f.clock, f.logger, f.limits)

	out, err := uc.Execute(context.Background(), CreateSeriesFromFileInput{
		ActorID:         "alice",
		Content:         importFile,
		DefaultTimezone: "UTC",
		DryRun:          true,
	})
	require.NoError(t, err)
	require.Len(t, out.Tasks, 2)
	assert.Equal(t, "draft-1", out.Tasks[0].ID)
	assert.Empty(t, f.store.Tasks)
	assert.Zero(t, f.store.AtomicCalls)
}

func TestCreateSeriesFromFile_Errors(t *testing.T) {
	tests := []struct {
		wantErr error
		setup   func(f *fixture)
		name    string
		content string
		errText string
	}{
		{name: "empty", content: "  \n", wantErr: domain.ErrEmptyFile},
		{name: "no series", content: "series: []\n", wantErr: domain.ErrNoSeriesInFile},
		{name: "invalid yaml", content: "- title: [unterminated\n", errText: "parse series file"},
		{
			name: "second entry invalid",
			content: `
- {title: Ok, date: 2024-03-04, time: "09:00", duration: 15}
- {title: Bad, date: 2024-03-04, time: "09:00", duration: 0}
`,
			wantErr: domain.ErrValidation,
			errText: "series 2",
		},
		{
			name:    "insert failure",
			content: importFile,
			setup: func(f *fixture) {
				f.store.FailOnce("InsertTask", nil)
				f.store.FailOnce("InsertTask", errors.New("quota"))
			},
			errText: "series 2: save task",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			uc := NewCreateSeriesFromFile(f.store, f.ids, f.clock, f.logger, f.limits)

			_, err := uc.Execute(context.Background(), CreateSeriesFromFileInput{
				ActorID:         "alice",
				Content:         tt.content,
				DefaultTimezone: "UTC",
			})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.errText != "" {
				assert.Contains(t, err.Error(), tt.errText)
			}
			assert.Empty(t, f.store.Tasks)
		})
	}
}
