package backfill

import "testing"

func TestSplitRange(t *testing.T) {
	tests := []struct {
		name      string
		from      uint64
		to        uint64
		chunkSize uint64
		want      []BlockRange
	}{
		{
			name:      "single chunk",
			from:      100,
			to:        150,
			chunkSize: 100,
			want:      []BlockRange{{From: 100, To: 150}},
		},
		{
			name:      "exact multiple",
			from:      0,
			to:        199,
			chunkSize: 100,
			want:      []BlockRange{{From: 0, To: 99}, {From: 100, To: 199}},
		},
		{
			name:      "uneven tail",
			from:      10,
			to:        35,
			chunkSize: 10,
			want:      []BlockRange{{From: 10, To: 19}, {From: 20, To: 29}, {From: 30, To: 35}},
		},
		{
			name:      "single block",
			from:      7,
			to:        7,
			chunkSize: 1000,
			want:      []BlockRange{{From: 7, To: 7}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SplitRange(tc.from, tc.to, tc.chunkSize)
			if err != nil {
				t.Fatalf("SplitRange: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d ranges, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("range %d: got %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestSplitRangeErrors(t *testing.T) {
	if _, err := SplitRange(10, 5, 100); err == nil {
		t.Error("expected error for to < from")
	}
	if _, err := SplitRange(0, 10, 0); err == nil {
		t.Error("expected error for zero chunk size")
	}
}

func TestSplitRangeCoversEveryBlock(t *testing.T) {
	ranges, err := SplitRange(1000, 12345, 777)
	if err != nil {
		t.Fatalf("SplitRange: %v", err)
	}

	next := uint64(1000)
	for i, r := range ranges {
		if r.From != next {
			t.Fatalf("range %d starts at %d, want %d", i, r.From, next)
		}
		if r.To < r.From {
			t.Fatalf("range %d is inverted: %+v", i, r)
		}
		if r.To-r.From+1 > 777 {
			t.Fatalf("range %d exceeds chunk size: %+v", i, r)
		}
		next = r.To + 1
	}
	if last := ranges[len(ranges)-1].To; last != 12345 {
		t.Fatalf("last range ends at %d, want 12345", last)
	}
}
