package protocol

import "time"

// RecognitionControl starts or stops a remote recognition session.
type RecognitionControl struct {
	SessionID       string    `json:"session_id"`
	Action          string    `json:"action"`
	Language        string    `json:"language,omitempty"`
	Continuous      bool      `json:"continuous"`
	InterimResults  bool      `json:"interim_results"`
	MaxAlternatives int       `json:"max_alternatives,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// RecognitionAlternative is one candidate transcript for a result.
type RecognitionAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence,omitempty"`
}

// RecognitionResult is one entry of a recognition result list.
type RecognitionResult struct {
	Final        bool                     `json:"final"`
	Alternatives []RecognitionAlternative `json:"alternatives"`
}

// RecognitionEvent carries the result list of a recognition session.
type RecognitionEvent struct {
	SessionID   string              `json:"session_id"`
	ResultIndex int                 `json:"result_index"`
	Results     []RecognitionResult `json:"results"`
}

// RecognitionError reports a recognizer error code (no-speech, audio-capture, ...).
type RecognitionError struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
}

// RecognitionEnd marks the end of a recognition session.
type RecognitionEnd struct {
	SessionID string `json:"session_id"`
}

// SpeechRequest asks a remote synthesizer to speak one utterance.
type SpeechRequest struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Lang   string  `json:"lang"`
	Voice  string  `json:"voice,omitempty"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
}

// SpeechStatus reports the outcome of a SpeechRequest.
type SpeechStatus struct {
	ID        string    `json:"id"`
	Completed bool      `json:"completed"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SpeechCancel interrupts the utterance with the given id.
type SpeechCancel struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// Voice describes an installed synthesizer voice.
type Voice struct {
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}

// VoiceList is the reply to a voice listing request.
type VoiceList struct {
	Voices []Voice `json:"voices"`
}

// TranslateRequest mirrors the HTTP /translate payload on the bus.
type TranslateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// TranslateResponse mirrors the HTTP /translate response on the bus.
type TranslateResponse struct {
	TranslatedText string `json:"translatedText,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Notice is a user-facing notification broadcast to observers.
type Notice struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectRecognitionControl = "stt.control"
	SubjectRecognitionPrefix  = "stt.session"
	SubjectSpeak              = "tts.speak"
	SubjectSpeakCancel        = "tts.cancel"
	SubjectVoices             = "tts.voices"
	SubjectSpeechStatusPrefix = "tts.status"
	SubjectTranslateRequest   = "translate.request"
	SubjectNotice             = "ui.notice"
)

const (
	ActionStart = "start"
	ActionStop  = "stop"
)

func SubjectRecognitionResult(sessionID string) string {
	return SubjectRecognitionPrefix + "." + sessionID + ".result"
}

func SubjectRecognitionError(sessionID string) string {
	return SubjectRecognitionPrefix + "." + sessionID + ".error"
}

func SubjectRecognitionEnd(sessionID string) string {
	return SubjectRecognitionPrefix + "." + sessionID + ".end"
}

func SubjectSpeechStatus(id string) string {
	return SubjectSpeechStatusPrefix + "." + id
}
