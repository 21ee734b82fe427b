package live

// Outbound messages of the BidiGenerateContent protocol.

type setupMessage struct {
	Setup setup `json:"setup"`
}

type setup struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generation_config"`
	SystemInstruction        *Content         `json:"system_instruction,omitempty"`
	InputAudioTranscription  *struct{}        `json:"input_audio_transcription,omitempty"`
	OutputAudioTranscription *struct{}        `json:"output_audio_transcription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"response_modalities"`
	SpeechConfig       speechConfig `json:"speech_config"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voice_config"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuilt_voice_config"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voice_name"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtime_input"`
}

type realtimeInput struct {
	MediaChunks []Blob `json:"media_chunks"`
}

// Inbound messages. Fields absent from a message stay nil or zero.

// ServerMessage is one message received from the live endpoint.
type ServerMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
}

// ServerContent carries model output and transcripts.
type ServerContent struct {
	ModelTurn           *Content       `json:"modelTurn,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
}

// Content is an ordered list of parts.
type Content struct {
	Parts []Part `json:"parts"`
}

// Part is either text or inline media.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Blob is base64 media. Only Data is read on inbound messages.
type Blob struct {
	MIMEType string `json:"mime_type,omitempty"`
	Data     string `json:"data"`
}

// Transcription is a transcript fragment for one side of the conversation.
type Transcription struct {
	Text string `json:"text"`
}
