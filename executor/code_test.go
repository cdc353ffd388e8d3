package executor

import (
	"cad-lab/errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractCodeBlocks(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []CodeBlock
	}{
		{
			name:     "Python block",
			text:     "Here is the code:\n```python\nimport cadquery as cq\nprint(1)\n```\nTERMINATE",
			expected: []CodeBlock{{Lang: "python", Code: "import cadquery as cq\nprint(1)"}},
		},
		{
			name:     "Block without language",
			text:     "```\nprint('x')\n```",
			expected: []CodeBlock{{Lang: "python", Code: "print('x')"}},
		},
		{
			name: "Several blocks keep their order",
			text: "```sh\nls\n```\ntext\n```py\nprint(2)\n```",
			expected: []CodeBlock{
				{Lang: "sh", Code: "ls"},
				{Lang: "python", Code: "print(2)"},
			},
		},
		{
			name:     "No code",
			text:     "Looks good to me. TERMINATE",
			expected: []CodeBlock{},
		},
		{
			name:     "Empty block is skipped",
			text:     "```python\n\n```",
			expected: []CodeBlock{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			req.Equal(tt.expected, ExtractCodeBlocks(tt.text))
		})
	}
}

func TestFileName(t *testing.T) {
	req := require.New(t)

	name, err := FileName("# filename: gear.py\nimport cadquery", "python")
	req.NoError(err)
	req.Equal("gear.py", name)

	name, err = FileName("#filename:  parts/plate.py\nx = 1", "python")
	req.NoError(err)
	req.Equal("parts/plate.py", name)

	name, err = FileName("print(1)", "python")
	req.NoError(err)
	req.True(strings.HasPrefix(name, "tmp_code_"))
	req.True(strings.HasSuffix(name, ".py"))

	again, err := FileName("print(1)", "python")
	req.NoError(err)
	req.Equal(name, again, "the hashed name is stable")

	_, err = FileName("# filename: ../../etc/passwd\n", "python")
	req.ErrorIs(err, errors.ErrUnsafeFilename)

	_, err = FileName("# filename: /tmp/evil.py\n", "python")
	req.ErrorIs(err, errors.ErrUnsafeFilename)
}
