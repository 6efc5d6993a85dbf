package speech

import (
	"context"
	"fmt"
	"strings"

	"scribe/scribe/config"
	"scribe/scribe/utils/logging"

	speechapi "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
)

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// GoogleEngine transcribes audio spans with Cloud Speech-to-Text synchronous
// recognition.
type GoogleEngine struct {
	client    *speechapi.Client
	recognize recognizeFunc
	config    *speechpb.RecognitionConfig
}

func NewGoogleEngine(ctx context.Context, cfg config.Config) (*GoogleEngine, error) {
	client, err := speechapi.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	rc := RecognitionConfig(cfg)
	logging.AppLogger.Info("Speech engine ready",
		zap.String("language", rc.LanguageCode),
		zap.String("encoding", rc.Encoding.String()),
		zap.Int32("sample_rate", rc.SampleRateHertz),
		zap.Int("phrases", len(cfg.SpeechPhrases)),
	)
	return &GoogleEngine{
		client: client,
		recognize: func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return client.Recognize(ctx, req)
		},
		config: rc,
	}, nil
}

// RecognitionConfig maps the speech settings onto the request template.
func RecognitionConfig(cfg config.Config) *speechpb.RecognitionConfig {
	language := cfg.SpeechLanguage
	if language == "" {
		language = "en-US"
	}
	rc := &speechpb.RecognitionConfig{
		Encoding:                   ParseEncoding(cfg.SpeechEncoding),
		SampleRateHertz:            int32(cfg.SpeechSampleRate),
		LanguageCode:               language,
		EnableAutomaticPunctuation: true,
	}
	if len(cfg.SpeechPhrases) > 0 {
		rc.SpeechContexts = []*speechpb.SpeechContext{{Phrases: cfg.SpeechPhrases}}
	}
	return rc
}

// ParseEncoding accepts the lower case names clients send as well as the
// enum names; anything unknown is LINEAR16.
func ParseEncoding(format string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(format) {
	case "linear16", "pcm", "":
		return speechpb.RecognitionConfig_LINEAR16
	case "ogg_opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "webm_opus":
		return speechpb.RecognitionConfig_WEBM_OPUS
	case "flac":
		return speechpb.RecognitionConfig_FLAC
	case "mulaw":
		return speechpb.RecognitionConfig_MULAW
	}
	if v, ok := speechpb.RecognitionConfig_AudioEncoding_value[strings.ToUpper(format)]; ok {
		return speechpb.RecognitionConfig_AudioEncoding(v)
	}
	logging.ErrorLogger.Warn("Unknown audio format, defaulting to LINEAR16", zap.String("format", format))
	return speechpb.RecognitionConfig_LINEAR16
}

// Transcribe returns the best alternative of every result, space separated.
// Silence yields an empty string.
func (e *GoogleEngine) Transcribe(ctx context.Context, audio []byte) (string, error) {
	defer logging.LogDuration(ctx, "speech_recognize", zap.Int("audio_bytes", len(audio)))()

	resp, err := e.recognize(ctx, &speechpb.RecognizeRequest{
		Config: e.config,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	})
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	parts := make([]string, 0, len(resp.GetResults()))
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

func (e *GoogleEngine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}
