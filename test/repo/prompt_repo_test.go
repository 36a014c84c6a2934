package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trainproof/trainproof/internal/model"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
	"github.com/trainproof/trainproof/internal/repo"
	"github.com/trainproof/trainproof/test/testutil"
)

func TestPromptPublishFlipsDefault(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	prompts := repo.NewPromptRepo(db)
	taskType := uniqueID("task")

	v1, err := prompts.Publish(context.Background(), &model.PromptTemplate{
		TaskType:        taskType,
		RequirementType: model.RequirementTypeAll,
		DocumentType:    model.DocumentTypeBoth,
		PromptText:      "first version {{requirement}}",
		OutputSchema:    []byte(`{"type":"object"}`),
		GenerationConfig: model.GenerationConfig{
			Temperature:     0.2,
			MaxOutputTokens: 1024,
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, v1.Version)
	require.True(t, v1.IsDefault)

	v2, err := prompts.Publish(context.Background(), &model.PromptTemplate{
		TaskType:        taskType,
		RequirementType: model.RequirementTypeAll,
		DocumentType:    model.DocumentTypeBoth,
		PromptText:      "second version {{requirement}}",
		OutputSchema:    []byte(`{"type":"object"}`),
	})
	require.NoError(t, err)
	require.Equal(t, 2, v2.Version)

	// The default follows the newest version; history is retained.
	current, err := prompts.GetDefault(context.Background(), taskType, model.RequirementTypeAll, model.DocumentTypeBoth)
	require.NoError(t, err)
	require.Equal(t, 2, current.Version)
	require.Contains(t, current.PromptText, "second")

	versions, err := prompts.ListVersions(context.Background(), taskType, model.RequirementTypeAll, model.DocumentTypeBoth)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	require.Equal(t, 2, versions[0].Version)
	require.Equal(t, 1, versions[1].Version)
	require.False(t, versions[1].IsDefault)

	_, err = prompts.GetDefault(context.Background(), uniqueID("other"), model.RequirementTypeAll, model.DocumentTypeBoth)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
