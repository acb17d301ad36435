package anonymizer

// Stage is one step of a run, in execution order
type Stage string

const (
	StageCollect       Stage = "COLLECT"
	StageValidate      Stage = "VALIDATE"
	StageBuildMappings Stage = "BUILD_MAPPINGS"
	StageApply         Stage = "APPLY"
	StageEmit          Stage = "EMIT"
)

// Stages lists every stage in execution order
var Stages = []Stage{StageCollect, StageValidate, StageBuildMappings, StageApply, StageEmit}
