package cycle

// ParameterValue describes one accepted trigger parameter.
type ParameterValue struct {
	DisplayName string `json:"display_name"`
	Value       int32  `json:"value"`
}

// ParameterMetadata describes the trigger parameters a controller accepts.
// Any step is valid; these are the conventional ones offered to users.
type ParameterMetadata struct {
	Step []ParameterValue `json:"step"`
}

// Step values offered to users.
const (
	StepNext     int32 = 1
	StepPrevious int32 = -1
)

// Metadata returns the trigger parameter description shared by all controllers.
func Metadata() ParameterMetadata {
	return ParameterMetadata{
		Step: []ParameterValue{
			{DisplayName: "Next", Value: StepNext},
			{DisplayName: "Previous", Value: StepPrevious},
		},
	}
}
