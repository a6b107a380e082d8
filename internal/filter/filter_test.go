package filter

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// identity mimics script conversion on Latin text, which it leaves untouched.
var identity = Transform{Name: "identity", Convert: func(s string) (string, error) { return s, nil }}

func TestMatchIsCaseInsensitive(t *testing.T) {
	ks, err := NewKeywordSet([]string{"AI"}, identity)
	require.NoError(t, err)
	require.Equal(t, []string{"AI"}, ks.Variants("identity"))

	term, ok := ks.Match("This covers ai safety.")
	require.True(t, ok)
	require.Equal(t, "AI", term)
}

func TestMatchIsLiteralSubstring(t *testing.T) {
	// Known permissive match: no word boundaries, so "AI" hits "maintain".
	ks, err := NewKeywordSet([]string{"AI"})
	require.NoError(t, err)

	_, ok := ks.Match("How to maintain a garden")
	require.True(t, ok)

	_, ok = ks.Match("Gardening tips for spring")
	require.False(t, ok)
}

func TestMatchUsesVariants(t *testing.T) {
	fake := Transform{Name: "s2t", Convert: func(s string) (string, error) {
		return strings.NewReplacer("软", "軟", "国", "國").Replace(s), nil
	}}
	ks, err := NewKeywordSet([]string{"软件", "中国"}, fake)
	require.NoError(t, err)

	require.Equal(t, []string{"軟件", "中國"}, ks.Variants("s2t"))
	require.Equal(t, []string{"软件", "中国", "軟件", "中國"}, ks.Terms())

	term, ok := ks.Match("這是一篇關於開源軟件的文章")
	require.True(t, ok)
	require.Equal(t, "軟件", term)

	_, ok = ks.Match("一篇關於硬體的文章")
	require.False(t, ok)
}

func TestNewKeywordSetDropsBlanksAndDuplicates(t *testing.T) {
	ks, err := NewKeywordSet([]string{" LLM ", "", "llm", "  ", "agents"}, identity)
	require.NoError(t, err)

	require.Equal(t, []string{"LLM", "llm", "agents"}, ks.Base())
	require.Equal(t, []string{"LLM", "agents"}, ks.Terms())
}

func TestNewKeywordSetTransformError(t *testing.T) {
	broken := Transform{Name: "broken", Convert: func(string) (string, error) { return "", errors.New("dictionary missing") }}
	_, err := NewKeywordSet([]string{"AI"}, broken)
	require.ErrorContains(t, err, "broken")
}

func TestMatchIsIdempotentAndConcurrent(t *testing.T) {
	ks, err := NewKeywordSet([]string{"rust", "golang"}, identity)
	require.NoError(t, err)

	texts := []string{"A Golang release", "Nothing relevant", "RUSTACEANS unite", ""}
	want := make([]bool, len(texts))
	for i, txt := range texts {
		_, want[i] = ks.Match(txt)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, txt := range texts {
				_, got := ks.Match(txt)
				if got != want[i] {
					t.Errorf("Match(%q) = %v, want %v", txt, got, want[i])
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, []bool{true, false, true, false}, want)
}

func TestOpenCCTransforms(t *testing.T) {
	transforms, err := OpenCCTransforms(DefaultConversions...)
	require.NoError(t, err)
	require.Len(t, transforms, 3)

	ks, err := NewKeywordSet([]string{"软件", "AI"}, transforms...)
	require.NoError(t, err)

	// Latin keywords pass through every conversion unchanged.
	for _, tr := range DefaultConversions {
		require.Equal(t, "AI", ks.Variants(tr)[1], tr)
	}
	require.Equal(t, "軟件", ks.Variants("s2t")[0])

	_, ok := ks.Match("開源軟件正在改變世界")
	require.True(t, ok)
}

func TestOpenCCUnknownConversion(t *testing.T) {
	_, err := OpenCCTransforms("no-such-conversion")
	require.Error(t, err)
}
