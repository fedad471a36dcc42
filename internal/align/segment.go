package align

// Segment is a run of video frames with continuous timecode.
type Segment struct {
	Index            int    `json:"index"`
	FirstVideoFrame  uint64 `json:"first_video_frame"`
	LastVideoFrame   uint64 `json:"last_video_frame"`
	StartFrameNumber uint64 `json:"start_frame_number"`
}

// Frames returns the number of video frames in the segment.
func (s Segment) Frames() uint64 {
	return s.LastVideoFrame - s.FirstVideoFrame + 1
}

// BuildSegments splits totalFrames video frames at each cut. firstFrameNumber
// is the timecode frame number of video frame 0.
func BuildSegments(cuts []CutDecision, totalFrames uint64, firstFrameNumber uint64) []Segment {
	if totalFrames == 0 {
		return nil
	}

	segments := make([]Segment, 0, len(cuts)+1)
	current := Segment{StartFrameNumber: firstFrameNumber}
	for _, cut := range cuts {
		if cut.VideoFrameIndex == 0 || cut.VideoFrameIndex >= totalFrames {
			continue
		}
		current.LastVideoFrame = cut.VideoFrameIndex - 1
		current.Index = len(segments)
		segments = append(segments, current)
		current = Segment{
			FirstVideoFrame:  cut.VideoFrameIndex,
			StartFrameNumber: cut.ToFrameNumber,
		}
	}
	current.LastVideoFrame = totalFrames - 1
	current.Index = len(segments)
	return append(segments, current)
}
