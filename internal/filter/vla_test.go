package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelated(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		abstract string
		want     bool
	}{
		{
			name:  "hyphenated_full_phrase",
			title: "MAP-VLA: Memory-Augmented Prompting for Vision-Language-Action Model",
			want:  true,
		},
		{
			name:  "abbreviation_with_model_context",
			title: "Audio-VLA: Adding Contact Audio to VLA model",
			want:  true,
		},
		{
			name:  "abbreviation_with_policy_context",
			title: "Training VLA policy for robotic manipulation",
			want:  true,
		},
		{
			name:  "abbreviation_with_framework_context",
			title: "A new VLA framework for embodied AI",
			want:  true,
		},
		{
			name:     "full_phrase_in_abstract",
			abstract: "We propose a Vision-Language-Action model for robots",
			want:     true,
		},
		{
			name:     "spaced_full_phrase_in_abstract",
			abstract: "Our vision language action approach improves performance",
			want:     true,
		},
		{
			name:  "vision_language_without_action",
			title: "Large Vision-Language Models for Visual Understanding",
			want:  false,
		},
		{
			name:  "lvlm_is_not_vla",
			title: "LVLM: A new approach to vision-language tasks",
			want:  false,
		},
		{
			name:  "embodied_ai_without_vla",
			title: "Embodied AI with foundation models",
			want:  false,
		},
		{
			name:  "multimodal_robotics_without_vla",
			title: "Multimodal Learning for Robotics",
			want:  false,
		},
		{
			name:     "abbreviation_collision_without_context",
			abstract: "VLA in finance: value-at-risk analysis",
			want:     false,
		},
		{
			name: "empty_inputs",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Related(tt.title, tt.abstract))
		})
	}
}

func TestRelatedCaseInsensitive(t *testing.T) {
	assert.True(t, Related("VISION-LANGUAGE-ACTION MODELS AT SCALE", ""))
	assert.True(t, Related("", "training a vla MODEL end to end"))
}
