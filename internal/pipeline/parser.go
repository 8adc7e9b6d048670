package pipeline

import "fmt"

// parseTokens splits a flat token list into stages on the separator
// token. Each run of tokens between separators becomes one stage's
// argument list.
//
// It returns ErrNoPrograms for an empty token list, ErrEmptyStage when a
// leading, doubled, or trailing separator leaves a stage without a
// command, and ErrTooManyStages when the list holds more than maxStages
// stages. Parsing never touches pipes or processes.
func parseTokens(tokens []string, separator string, maxStages int) ([]*stage, error) {
	if len(tokens) == 0 {
		return nil, ErrNoPrograms
	}

	var stages []*stage
	var args []string
	for _, token := range tokens {
		if token != separator {
			args = append(args, token)
			continue
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: stage %d", ErrEmptyStage, len(stages))
		}
		stages = append(stages, &stage{args: args})
		args = nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: stage %d", ErrEmptyStage, len(stages))
	}
	stages = append(stages, &stage{args: args})

	if len(stages) > maxStages {
		return nil, fmt.Errorf("%w: %d stages, limit is %d", ErrTooManyStages, len(stages), maxStages)
	}
	return stages, nil
}
