package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal  = "local"
	StorageMinio  = "minio"
	StorageOSS    = "oss"
	StorageMemory = "memory"
)

// Audio upload limits and formats
const (
	MimeAudio       = "audio/"
	MimeWave        = "audio/wave"
	MimeOctetStream = "application/octet-stream"
	MimeWebM        = "video/webm"
)

var (
	AllowedAudioMimeTypes  = []string{MimeAudio, MimeOctetStream, MimeWebM, "application/ogg"}
	AllowedAudioExtensions = []string{".wav", ".mp3", ".ogg", ".webm", ".m4a", ".flac"}
)

// Redis key prefixes
const (
	RedisKeyCachePrefix = "vidyabot:cache:"
)

const (
	AudioArchiveDir = "audio"
	TempAudioPrefix = "vidyabot_audio_"
)
