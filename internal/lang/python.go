package lang

import (
	"github.com/smacker/go-tree-sitter/python"
)

func init() {
	register(&Grammar{
		Name:       "python",
		Extensions: []string{".py"},
		language:   python.GetLanguage(),
	})
}
