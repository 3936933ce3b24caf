package workflow

import "github.com/draftforge/contentflow_backend/models"

// Phase names. These are both the artifact-bag keys and the resumption
// points accepted by ContinueGenerationFromPhase.
const (
	PhaseResearch       = "research"
	PhaseWrite          = "write"
	PhaseQualityControl = "quality-control"
	PhaseValidation     = "validation"
	PhaseFinalize       = "seo-audit"
)

// Sub-phase labels surfaced through GenerationRecord.CurrentPhase for finer
// UI feedback than the status enum gives.
const (
	SubPhaseOutline        = "outline"
	SubPhaseRemediation    = "remediation"
	SubPhaseImageSelection = "image-selection"
)

// phaseOrder is the strict execution sequence.
var phaseOrder = []string{PhaseResearch, PhaseWrite, PhaseQualityControl, PhaseValidation, PhaseFinalize}

// Progress checkpoints per pipeline step. Progress is monotone: a record
// only ever moves forward through these values.
const (
	progressResearch       = 10
	progressOutline        = 30
	progressWriting        = 45
	progressQualityControl = 60
	progressValidating     = 70
	progressUpdating       = 80
	progressSeoAudit       = 85
	progressImageSelection = 92
)

// statusRank orders generation statuses along the pipeline so resumption
// can tell "already past this phase" apart from "still before it".
var statusRank = map[models.GenerationStatus]int{
	models.GenerationStatusPending:        0,
	models.GenerationStatusResearching:    1,
	models.GenerationStatusOutline:        2,
	models.GenerationStatusWriting:        3,
	models.GenerationStatusQualityControl: 4,
	models.GenerationStatusValidating:     5,
	models.GenerationStatusUpdating:       6,
	models.GenerationStatusCompleted:      7,
}

// phaseDoneRank maps a phase to the highest status rank it can leave the
// record in. A record whose status ranks above this has already finished
// the phase.
var phaseDoneRank = map[string]int{
	PhaseResearch:       statusRank[models.GenerationStatusResearching],
	PhaseWrite:          statusRank[models.GenerationStatusWriting],
	PhaseQualityControl: statusRank[models.GenerationStatusQualityControl],
	PhaseValidation:     statusRank[models.GenerationStatusValidating],
	PhaseFinalize:       statusRank[models.GenerationStatusUpdating],
}

func phaseIndex(phase string) int {
	for i, name := range phaseOrder {
		if name == phase {
			return i
		}
	}
	return -1
}

// IsKnownPhase reports whether phase is a valid resumption point.
func IsKnownPhase(phase string) bool {
	return phaseIndex(phase) >= 0
}
