package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "tag_images") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_StageChange(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(0, "find_duplicates") {
		t.Error("first stage should log")
	}
	if s.ShouldLog(0, "find_duplicates") {
		t.Error("same stage and percent should not log again")
	}
	if !s.ShouldLog(0, "  move_duplicates ") {
		t.Error("different stage should log")
	}
	if s.lastStage != "move_duplicates" {
		t.Errorf("lastStage = %q, want trimmed move_duplicates", s.lastStage)
	}
}

func TestProgressSampler_PercentBuckets(t *testing.T) {
	s := NewProgressSampler(5)
	steps := []struct {
		percent float64
		want    bool
	}{
		{0, true},
		{3, false},
		{5, true},
		{7, false},
		{10, true},
		{100, true},
		{105, false},
	}
	for _, step := range steps {
		if got := s.ShouldLog(step.percent, "tag_videos"); got != step.want {
			t.Errorf("ShouldLog(%v) = %v, want %v", step.percent, got, step.want)
		}
	}
}

func TestProgressSampler_NegativePercent(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(-1, "build_index") {
		t.Error("first call should log even with negative percent")
	}
	if s.ShouldLog(-1, "build_index") {
		t.Error("negative percent should not trigger bucket logging")
	}
}

func TestProgressSampler_ShouldLogCount(t *testing.T) {
	s := NewProgressSampler(25)
	if !s.ShouldLogCount(0, 8, "organize_by_date") {
		t.Error("first count should log")
	}
	if s.ShouldLogCount(1, 8, "organize_by_date") {
		t.Error("12.5% should not log with 25% buckets")
	}
	if !s.ShouldLogCount(2, 8, "organize_by_date") {
		t.Error("25% should log")
	}
	if !s.ShouldLogCount(8, 8, "organize_by_date") {
		t.Error("completion should log")
	}
}

func TestProgressSampler_Reset(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "detect_nsfw")
	s.Reset()
	if s.lastStage != "" || s.lastBucket != -1 {
		t.Fatalf("reset left state stage=%q bucket=%d", s.lastStage, s.lastBucket)
	}
	if !s.ShouldLog(50, "detect_nsfw") {
		t.Error("should log after reset")
	}
}
