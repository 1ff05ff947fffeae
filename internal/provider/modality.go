package provider

import (
	"slices"
	"strings"

	"draftsmith/internal/models"
)

// Modality is the kind of output a generation call produces.
type Modality string

const (
	ModalityText       Modality = "text"
	ModalityObject     Modality = "object"
	ModalityImage      Modality = "image"
	ModalityMultimodal Modality = "multimodal"
	ModalitySpeech     Modality = "speech"
	ModalityVideo      Modality = "video"
)

// speechKinds are dedicated speech providers. General providers are treated
// as speech when the model id follows the usual TTS naming convention.
var speechKinds = map[string]bool{
	"elevenlabs": true,
}

// detectModality classifies a resolved provider/model pair. Precedence is
// video, then speech, then image. A model that answers text prompts with
// inline image parts is multimodal and needs a different call shape than a
// dedicated image model.
func detectModality(p models.ProviderSettings, m models.ModelConfig) Modality {
	switch m.UseCase {
	case models.UseCaseText:
		return ModalityText
	case models.UseCaseVideo:
		return ModalityVideo
	case models.UseCaseSpeech:
		return ModalitySpeech
	}
	if speechKinds[p.Kind] || strings.Contains(strings.ToLower(m.ID), "tts") {
		return ModalitySpeech
	}
	if slices.Contains(m.ResponseModalities, "IMAGE") {
		return ModalityMultimodal
	}
	return ModalityImage
}
