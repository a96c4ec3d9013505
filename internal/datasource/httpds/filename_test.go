package httpds

import "testing"

func TestHashString_Stable(t *testing.T) {
	t.Parallel()

	const input = "https://example.com/path?x=1&y=2"
	got1 := HashString(input)
	got2 := HashString(input)

	if got1 == "" {
		t.Fatalf("HashString returned empty string")
	}
	if got1 != got2 {
		t.Fatalf("HashString(%q) not stable: %q vs %q", input, got1, got2)
	}
	if HashString(input+"z") == got1 {
		t.Fatalf("different inputs hashed equal")
	}
}

func TestNameHintFromURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"path_with_extension", "https://example.com/exports/prices.csv.gz", "prices.csv.gz"},
		{"path_ignores_query", "https://example.com/a/b.csv?token=abc", "b.csv"},
		{"query_when_no_extension", "https://example.com/download?id=42&fmt=csv", "id_42_fmt_csv"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if got := NameHintFromURL(c.in); got != c.want {
				t.Fatalf("NameHintFromURL(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestNameHintFromURL_FallsBackToHash(t *testing.T) {
	t.Parallel()

	raw := "https://example.com/download"
	if got, want := NameHintFromURL(raw), HashString(raw); got != want {
		t.Fatalf("NameHintFromURL(%q) = %q, want hash %q", raw, got, want)
	}

	bad := "://not a url"
	if got, want := NameHintFromURL(bad), HashString(bad); got != want {
		t.Fatalf("NameHintFromURL(%q) = %q, want hash %q", bad, got, want)
	}
}
