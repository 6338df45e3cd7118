package buffer

import (
	"regexp"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-select/api"
)

func collect(b *Buffer, d Delimiter) []string {
	var out []string
	for rec := range b.Records(d) {
		out = append(out, string(rec))
	}
	return out
}

func TestAppendMatchesSingleAppend(t *testing.T) {
	a, b := New(), New()
	a.AppendString("hello, ")
	a.Append([]byte("world"))
	b.AppendString("hello, world")
	assert.Equal(t, b.Bytes(), a.Bytes())
	assert.Equal(t, 12, a.Len())
}

func TestZeroValue(t *testing.T) {
	var b Buffer
	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.Bytes())
	require.NoError(t, b.RemovePrefix(0))
	b.AppendString("x")
	assert.Equal(t, "x", b.String())
}

func TestRemovePrefix(t *testing.T) {
	b := From([]byte("abcdef"))
	require.NoError(t, b.RemovePrefix(2))
	assert.Equal(t, "cdef", b.String())
	require.NoError(t, b.RemovePrefix(4))
	assert.Equal(t, 0, b.Len())

	b.AppendString("xy")
	err := b.RemovePrefix(3)
	require.ErrorIs(t, err, api.ErrInvalidArgument)
	assert.Equal(t, "xy", b.String(), "failed removal must not change contents")
	require.ErrorIs(t, b.RemovePrefix(-1), api.ErrInvalidArgument)
}

func TestConcatAssociative(t *testing.T) {
	a, b, c := From([]byte("ab")), From([]byte("cd")), From([]byte("ef"))
	left := a.Concat(b).Concat(c)
	right := a.Concat(b.Concat(c))
	assert.Equal(t, "abcdef", left.String())
	assert.Equal(t, left.Bytes(), right.Bytes())
	assert.Equal(t, "ab", a.String(), "operands stay untouched")
	assert.Equal(t, "ab", a.Concat(nil).String())
}

func TestRecordsLiteral(t *testing.T) {
	b := New()
	b.AppendString("ab")
	assert.Empty(t, collect(b, Literal("\n")))
	b.AppendString("c\nde")
	assert.Equal(t, []string{"abc"}, collect(b, Literal("\n")))
	assert.Equal(t, "de", b.String())
}

func TestRecordsLiteralIsEscaped(t *testing.T) {
	b := From([]byte("a.b|c.|d"))
	assert.Equal(t, []string{"a.b|c"}, collect(b, Literal(".|")))
	assert.Equal(t, "d", b.String())
}

func TestRecordsByteCount(t *testing.T) {
	b := From([]byte("abcdefg"))
	assert.Equal(t, []string{"abc", "def"}, collect(b, ByteCount(3)))
	assert.Equal(t, "g", b.String())
}

func TestRecordsPattern(t *testing.T) {
	b := From([]byte("one\r\ntwo\nthree"))
	assert.Equal(t, []string{"one", "two"}, collect(b, MustPattern(`\r?\n`)))
	assert.Equal(t, "three", b.String())
}

func TestRecordsEmptyRecord(t *testing.T) {
	b := From([]byte("\n\nx\n"))
	assert.Equal(t, []string{"", "", "x"}, collect(b, DefaultDelimiter))
}

func TestRecordsStopEarlyAndRestart(t *testing.T) {
	b := From([]byte("a;b;c;"))
	d := Literal(";")
	for rec := range b.Records(d) {
		assert.Equal(t, "a", string(rec))
		break
	}
	assert.Equal(t, "b;c;", b.String())
	assert.Equal(t, []string{"b", "c"}, collect(b, d))
}

func TestRecordsSurviveRelease(t *testing.T) {
	b := From([]byte("a;b;c;"))
	var got []string
	for rec := range b.Records(Literal(";")) {
		got = append(got, string(rec))
		b.Release()
	}
	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, 0, b.Len())
}

func TestRecordsChunkInvariant(t *testing.T) {
	stream := []byte("alpha\nbeta\n\ngamma\ndelta-partial")
	delims := map[string]Delimiter{
		"literal": Literal("\n"),
		"bytes":   ByteCount(4),
		"pattern": MustPattern(`a\n`),
	}
	for name, d := range delims {
		t.Run(name, func(t *testing.T) {
			whole := From(stream)
			want := collect(whole, d)
			for size := 1; size <= len(stream); size++ {
				b := New()
				var got []string
				for chunk := range slices.Chunk(stream, size) {
					b.Append(chunk)
					got = append(got, collect(b, d)...)
				}
				assert.Equal(t, want, got, "chunk size %d", size)
				assert.Equal(t, whole.String(), b.String(), "chunk size %d", size)
			}
		})
	}
}

func TestDelimiterValidate(t *testing.T) {
	require.NoError(t, DefaultDelimiter.Validate())
	require.NoError(t, ByteCount(1).Validate())
	require.ErrorIs(t, ByteCount(0).Validate(), api.ErrInvalidArgument)
	require.ErrorIs(t, Literal("").Validate(), api.ErrInvalidArgument)
	require.ErrorIs(t, Delimiter{}.Validate(), api.ErrInvalidArgument)
	_, err := Pattern(`x*`)
	require.ErrorIs(t, err, api.ErrInvalidArgument)
	_, err = Pattern(`(`)
	require.Error(t, err)
	assert.True(t, Delimiter{}.IsZero())
	assert.Equal(t, `literal("\n")`, DefaultDelimiter.String())
}

func TestPatternSkipsEmptyMatch(t *testing.T) {
	d := PatternOf(regexp.MustCompile(`;*`))
	require.Error(t, d.Validate())
	end, advance, ok := d.Next([]byte("ab;;cd"))
	require.True(t, ok)
	assert.Equal(t, 2, end)
	assert.Equal(t, 4, advance)

	_, _, ok = d.Next([]byte("abcd"))
	assert.False(t, ok)
}

func TestPatternDrainMatchesLiteral(t *testing.T) {
	var stream []byte
	for i := 0; i < 5000; i++ {
		stream = append(stream, "x\n"...)
	}
	stream = append(stream, "tail"...)

	lit := From(stream)
	pat := From(stream)
	want := collect(lit, Literal("\n"))
	require.Len(t, want, 5000)
	assert.Equal(t, want, collect(pat, MustPattern(`\n`)))
	assert.Equal(t, "tail", pat.String())
}

func TestDelimiterValues(t *testing.T) {
	lit, ok := Literal("\r\n").LiteralValue()
	assert.True(t, ok)
	assert.Equal(t, "\r\n", lit)
	_, ok = ByteCount(4).LiteralValue()
	assert.False(t, ok)

	n, ok := ByteCount(4).ByteCountValue()
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	_, ok = MustPattern(`\n`).ByteCountValue()
	assert.False(t, ok)
}
