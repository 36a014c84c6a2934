package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trainproof/trainproof/internal/model"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

func TestRequirementCreateBatch(t *testing.T) {
	store := newFakeRequirementStore()
	svc := NewRequirementService(store)

	created, err := svc.CreateBatch(context.Background(), []RequirementInput{
		{UnitCode: "BSBWHS411", Type: model.RequirementTypeKnowledgeEvidence, Text: "identify duty holders"},
		{UnitCode: "BSBWHS411", Type: model.RequirementTypePerformanceCriteria, Text: "consult on WHS matters"},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.NotEmpty(t, created[0].ID)
	require.NotEqual(t, created[0].ID, created[1].ID)

	listed, err := svc.ListByUnit(context.Background(), "BSBWHS411")
	require.NoError(t, err)
	require.Len(t, listed, 2)
}

func TestRequirementCreateBatchValidation(t *testing.T) {
	svc := NewRequirementService(newFakeRequirementStore())

	cases := []struct {
		name  string
		items []RequirementInput
	}{
		{"empty batch", nil},
		{"missing unit code", []RequirementInput{{Type: model.RequirementTypeKnowledgeEvidence, Text: "x"}}},
		{"unknown type", []RequirementInput{{UnitCode: "BSBWHS411", Type: "vibes", Text: "x"}}},
		{"missing text", []RequirementInput{{UnitCode: "BSBWHS411", Type: model.RequirementTypeKnowledgeEvidence}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateBatch(context.Background(), tc.items)
			require.ErrorIs(t, err, apperr.ErrInvalid)
		})
	}
}
