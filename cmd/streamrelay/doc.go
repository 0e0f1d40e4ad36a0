/*
Command streamrelay serves the video download API.

A client submits a video URL, picks one of the ranked streams and receives
the bytes relayed straight from the extractor's stdout. Playlists, search,
subtitles, batch archiving, audio conversion and clip trimming sit on the
same extractor (yt-dlp) and transcoder (ffmpeg), both run as subprocesses.

Layout

	├── cmd/streamrelay/       # Entry point and wiring
	├── config/                # Environment configuration (.env layering)
	├── handler/               # Request envelope, middleware chain, rate limiting
	│   └── platforms/         # net/http adapter, streaming routes, /metrics
	├── internal/
	│   ├── domain/            # Error kinds, failure classification, messages
	│   ├── media/             # Normalizer, classifier and ranker, formatting
	│   ├── tool/              # yt-dlp and ffmpeg runners
	│   ├── progress/          # Progress records and download history
	│   ├── relay/             # Extractor-to-client download relay
	│   ├── batch/             # Sequential background batches
	│   ├── transcode/         # Audio conversion and clip jobs
	│   └── worker/            # JSON operations and binary routes
	├── observability/         # JSON logging and Prometheus metrics
	└── storage/               # Artifact storage (filesystem, S3)

Routes

	POST /get_video_info       {url}
	POST /playlist_info        {url}
	POST /search               {query, limit}
	POST /subtitles            {url}
	POST /batch_download       {urls}
	POST /convert_audio        {url, format, bitrate}
	POST /trim_clip            {url, itag, start, end, is_audio}
	POST /clear_history
	GET  /progress/{id}
	GET  /history
	GET  /download?url&itag&title&is_audio&download_id
	GET  /subtitles/download?url&lang&format
	GET  /artifacts/{key}
	GET  /health /healthz /ready /live
	GET  /metrics

Errors are {"error": "<localized message>", "code": "<CODE>"} with the
status taken from the error kind.

Configuration

Settings come from the environment, layered over .env, .env.<ENVIRONMENT>
and .env.local. The most relevant:

	HTTP_ADDR               listen address (default :8080)
	EXTRACTOR_PATH          yt-dlp location
	TRANSCODER_PATH         ffmpeg location
	RELAY_MAX_DURATION      hard limit per download, 0 for none
	PROGRESS_TTL            how long finished records stay readable
	STORAGE_PROVIDER        fs or s3
	RATE_LIMIT_ENABLED      per-client token bucket
	UI_LOCALE               message language when Accept-Language has none
*/
package main
