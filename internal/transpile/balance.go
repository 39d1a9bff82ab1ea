package transpile

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/phobologic/templan/internal/model"
)

// ErrUnbalanced is returned by CheckBalance.
var ErrUnbalanced = errors.New("unbalanced tags")

var anyTagRe = regexp.MustCompile(`<(/?)dtml-([A-Za-z_][\w-]*)`)

type openBlock struct {
	kind   model.TagKind
	offset int
}

// CheckBalance verifies that every conditional and iteration block opened in
// source is closed by a tag of the same family, in nesting order. Unknown
// kinds are left for Convert to report.
func CheckBalance(source string) error {
	var stack []openBlock
	for _, loc := range anyTagRe.FindAllStringSubmatchIndex(source, -1) {
		closing := loc[3] > loc[2]
		name := source[loc[4]:loc[5]]
		offset := loc[0]

		if !closing {
			switch kind, _ := openKind(name); kind {
			case model.ConditionalOpen:
				stack = append(stack, openBlock{model.ConditionalClose, offset})
			case model.IterationOpen:
				stack = append(stack, openBlock{model.IterationClose, offset})
			}
			continue
		}

		kind, ok := closeKind(name)
		if !ok {
			continue
		}
		if len(stack) == 0 {
			return fmt.Errorf("%w: closing %q at offset %d has no opening tag", ErrUnbalanced, name, offset)
		}
		top := stack[len(stack)-1]
		if top.kind != kind {
			return fmt.Errorf("%w: closing %q at offset %d does not match block opened at offset %d", ErrUnbalanced, name, offset, top.offset)
		}
		stack = stack[:len(stack)-1]
	}
	if len(stack) > 0 {
		return fmt.Errorf("%w: %d block(s) never closed, first at offset %d", ErrUnbalanced, len(stack), stack[0].offset)
	}
	return nil
}
