package model

const (
	RequirementTypeKnowledgeEvidence    = "knowledge_evidence"
	RequirementTypePerformanceEvidence  = "performance_evidence"
	RequirementTypeAssessmentConditions = "assessment_conditions"
	RequirementTypeFoundationSkills     = "foundation_skills"
	RequirementTypePerformanceCriteria  = "performance_criteria"
)

// Requirement is immutable reference data: a single compliance
// statement to be judged against the evidence documents of a unit.
type Requirement struct {
	ID       string `json:"id"`
	UnitCode string `json:"unit_code"`
	Type     string `json:"type"`
	Text     string `json:"text"`
	Ctime    int64  `json:"ctime"`
}

func IsRequirementType(t string) bool {
	switch t {
	case RequirementTypeKnowledgeEvidence,
		RequirementTypePerformanceEvidence,
		RequirementTypeAssessmentConditions,
		RequirementTypeFoundationSkills,
		RequirementTypePerformanceCriteria:
		return true
	}
	return false
}
