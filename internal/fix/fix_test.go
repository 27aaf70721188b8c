package fix

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemalint/schemalint/internal/diagnostic"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		edits []diagnostic.TextEdit
		want  string
	}{
		{
			name: "no edits",
			src:  "class User\nend\n",
			want: "class User\nend\n",
		},
		{
			name:  "single insertion",
			src:   "class User < ApplicationRecord\nend\n",
			edits: []diagnostic.TextEdit{{Offset: 30, Text: "\n  the_schema_is do |t|\n  end\n"}},
			want:  "class User < ApplicationRecord\n  the_schema_is do |t|\n  end\n\nend\n",
		},
		{
			name: "offsets refer to the original source",
			src:  "abc",
			edits: []diagnostic.TextEdit{
				{Offset: 3, Text: "!"},
				{Offset: 0, Text: ">"},
				{Offset: 1, Text: "-"},
			},
			want: ">a-bc!",
		},
		{
			name: "same offset keeps input order",
			src:  "ab",
			edits: []diagnostic.TextEdit{
				{Offset: 1, Text: "1"},
				{Offset: 1, Text: "2"},
			},
			want: "a12b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Apply([]byte(tt.src), tt.edits)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestApply_OutOfRange(t *testing.T) {
	_, err := Apply([]byte("abc"), []diagnostic.TextEdit{{Offset: 4, Text: "x"}})
	assert.ErrorContains(t, err, "out of range")

	_, err = Apply([]byte("abc"), []diagnostic.TextEdit{{Offset: -1, Text: "x"}})
	assert.Error(t, err)
}

func TestDiff(t *testing.T) {
	original := "class User < ApplicationRecord\nend\n"
	fixed := "class User < ApplicationRecord\n  the_schema_is do |t|\n  end\nend\n"

	d := Diff(original, fixed)
	require.True(t, d.Changed)

	unified := d.UnifiedDiff("app/models/user.rb")
	assert.Contains(t, unified, "--- a/app/models/user.rb\n")
	assert.Contains(t, unified, "+++ b/app/models/user.rb\n")
	assert.Contains(t, unified, "+  the_schema_is do |t|\n")
	assert.Contains(t, unified, " class User < ApplicationRecord\n")
	assert.Equal(t, "2 lines added, 0 removed", d.Stats())
}

func TestDiff_Unchanged(t *testing.T) {
	d := Diff("same", "same")
	assert.False(t, d.Changed)
	assert.Empty(t, d.UnifiedDiff("x.rb"))
	assert.Equal(t, "No changes", d.Stats())
}

func TestDiff_String(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = saved }()

	out := Diff("a\n", "a\nb\n").String("f.rb")
	assert.Contains(t, out, "+b\n")
	assert.Contains(t, out, "@@")
}
