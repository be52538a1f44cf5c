package embedding

import "testing"

func TestTokenizeShape(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, mask, types := tok.Tokenize("hello world", 16)

	if len(ids) != 16 || len(mask) != 16 || len(types) != 16 {
		t.Fatalf("expected length 16, got %d/%d/%d", len(ids), len(mask), len(types))
	}
	if ids[0] != 101 {
		t.Errorf("expected [CLS] at position 0, got %d", ids[0])
	}
	// hello, world, then [SEP]
	if ids[3] != 102 {
		t.Errorf("expected [SEP] at position 3, got %d", ids[3])
	}
	for i := 0; i < 4; i++ {
		if mask[i] != 1 {
			t.Errorf("attention mask should be 1 at %d", i)
		}
	}
	for i := 4; i < 16; i++ {
		if mask[i] != 0 {
			t.Errorf("attention mask should be 0 at padding position %d", i)
		}
	}
}

func TestTokenizeTruncation(t *testing.T) {
	tok := &SimpleTokenizer{}
	long := ""
	for i := 0; i < 100; i++ {
		long += "word "
	}
	ids, mask, _ := tok.Tokenize(long, 8)
	if len(ids) != 8 {
		t.Fatalf("expected length 8, got %d", len(ids))
	}
	if ids[7] != 102 {
		t.Errorf("expected [SEP] at final position, got %d", ids[7])
	}
	for i := 0; i < 8; i++ {
		if mask[i] != 1 {
			t.Errorf("all positions should be attended when truncated, mask[%d]=0", i)
		}
	}
}

func TestHashStringDeterministic(t *testing.T) {
	if HashString("chapter") != HashString("chapter") {
		t.Error("hash should be deterministic")
	}
	if HashString("abc") < 0 {
		t.Error("hash should be non-negative")
	}
}
