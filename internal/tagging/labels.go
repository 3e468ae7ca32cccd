// Package tagging maps object-detection class labels to the integer indices
// stored on capsules. Capsules persist imageTagLabels as indices into the
// COCO 80-class table used by the YOLOv8 detector that produced them.
package tagging

import "strings"

// Labels is the COCO class table in detector index order.
var Labels = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train",
	"truck", "boat", "traffic light", "fire hydrant", "stop sign",
	"parking meter", "bench", "bird", "cat", "dog", "horse", "sheep", "cow",
	"elephant", "bear", "zebra", "giraffe", "backpack", "umbrella",
	"handbag", "tie", "suitcase", "frisbee", "skis", "snowboard",
	"sports ball", "kite", "baseball bat", "baseball glove", "skateboard",
	"surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork",
	"knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv",
	"laptop", "mouse", "remote", "keyboard", "cell phone", "microwave",
	"oven", "toaster", "sink", "refrigerator", "book", "clock", "vase",
	"scissors", "teddy bear", "hair drier", "toothbrush",
}

// LabelIndex resolves a lowercase label to its index.
var LabelIndex = func() map[string]int {
	m := make(map[string]int, len(Labels))
	for i, l := range Labels {
		m[l] = i
	}
	return m
}()

// Lookup resolves a query string to a label index, case-insensitively.
func Lookup(query string) (int, bool) {
	idx, ok := LabelIndex[strings.ToLower(strings.TrimSpace(query))]
	return idx, ok
}

// Name returns the label for an index, or "" when out of range.
func Name(idx int) string {
	if idx < 0 || idx >= len(Labels) {
		return ""
	}
	return Labels[idx]
}
