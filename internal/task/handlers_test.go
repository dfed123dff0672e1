package task

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/phrazzld/vidscribe/internal/mocks"
	"github.com/phrazzld/vidscribe/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transcriptItem(videoID, language string) WorkItem {
	return WorkItem{ID: uuid.New(), Type: TypeTranscript, ResourceID: videoID, Language: language}
}

func TestTranscriptHandler(t *testing.T) {
	t.Parallel()

	source := &mocks.MockTranscriptSource{
		Tracks: map[string]map[string]string{
			"vid-en":   {"en": "hello there"},
			"vid-es":   {"es": "hola"},
			"vid-ptbr": {"pt-BR": "olá"},
		},
		Default: map[string]string{
			"vid-en":   "en",
			"vid-es":   "es",
			"vid-ptbr": "pt-BR",
		},
	}

	tests := []struct {
		name       string
		item       WorkItem
		want       string
		translated bool
		failure    Failure
		wantErr    bool
	}{
		{name: "requested track exists", item: transcriptItem("vid-en", "en"), want: "hello there"},
		{name: "default track translated", item: transcriptItem("vid-es", "fr"), want: "[fr] hola", translated: true},
		{name: "default track in same primary language", item: transcriptItem("vid-ptbr", "pt"), want: "olá"},
		{name: "no tracks at all", item: transcriptItem("vid-none", "en"), wantErr: true, failure: FailurePermanent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			generator := &mocks.MockGenerationClient{}
			h := NewTranscriptHandler(source, generator, testLogger())

			got, err := h.Handle(context.Background(), tc.item)

			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, tc.failure, Classify(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.translated, len(generator.TranslateCalls()) == 1)
		})
	}
}

func TestTranscriptHandler_SourceErrorIsTransient(t *testing.T) {
	t.Parallel()
	source := &mocks.MockTranscriptSource{
		FetchFn: func(context.Context, string, string) (*transcript.Transcript, error) {
			return nil, errors.New("timedtext returned status 502")
		},
	}
	h := NewTranscriptHandler(source, &mocks.MockGenerationClient{}, testLogger())

	_, err := h.Handle(context.Background(), transcriptItem("vid", "en"))

	require.Error(t, err)
	assert.Equal(t, FailureTransient, Classify(err))
}

func TestTranscriptHandler_TranslateErrorPropagates(t *testing.T) {
	t.Parallel()
	source := &mocks.MockTranscriptSource{
		Tracks:  map[string]map[string]string{"vid": {"de": "hallo"}},
		Default: map[string]string{"vid": "de"},
	}
	generator := &mocks.MockGenerationClient{
		TranslateFn: func(context.Context, string, string) (string, error) {
			return "", errors.New("model overloaded")
		},
	}
	h := NewTranscriptHandler(source, generator, testLogger())

	_, err := h.Handle(context.Background(), transcriptItem("vid", "en"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to translate transcript from de")
}

func TestSummaryHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prepare func(t *testing.T, r *domain.Resource)
		create  bool
		failure Failure
		wantErr bool
	}{
		{
			name:   "completed transcript",
			create: true,
			prepare: func(t *testing.T, r *domain.Resource) {
				require.NoError(t, r.Complete("the transcript"))
			},
		},
		{name: "pending transcript", create: true, prepare: func(*testing.T, *domain.Resource) {}, wantErr: true, failure: FailureNotReady},
		{
			name:   "processing transcript",
			create: true,
			prepare: func(t *testing.T, r *domain.Resource) {
				require.NoError(t, r.MarkProcessing())
			},
			wantErr: true,
			failure: FailureNotReady,
		},
		{
			name:   "failed transcript",
			create: true,
			prepare: func(t *testing.T, r *domain.Resource) {
				require.NoError(t, r.Fail("permanent failure: no captions"))
			},
			wantErr: true,
			failure: FailurePermanent,
		},
		{name: "missing transcript", wantErr: true, failure: FailurePermanent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resources := mocks.NewMockResourceStore()
			generator := &mocks.MockGenerationClient{}

			if tc.create {
				fp, err := domain.NewFingerprint(domain.KindTranscript, "vid", "en")
				require.NoError(t, err)
				r, _, err := resources.FindOrCreate(context.Background(), fp)
				require.NoError(t, err)
				tc.prepare(t, r)
				require.NoError(t, resources.Update(context.Background(), r))
			}

			h := NewSummaryHandler(resources, generator)
			got, err := h.Handle(context.Background(), WorkItem{Type: TypeSummary, ResourceID: "vid", Language: "en"})

			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, tc.failure, Classify(err))
				assert.Empty(t, generator.SummarizeCalls())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "summary (en)", got)
			assert.Equal(t, []string{"the transcript"}, generator.SummarizeCalls())
		})
	}
}
