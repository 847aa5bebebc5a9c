package protocol

import "regexp"

// NoiseRule is one named pattern identifying benign stderr chatter.
type NoiseRule struct {
	Name    string
	Pattern *regexp.Regexp
}

// NoiseFilter classifies stderr lines against an ordered denylist of
// known-benign shapes. Anything it does not match keeps its default
// error classification.
type NoiseFilter struct {
	rules []NoiseRule
}

// DefaultNoiseRules returns the denylist for ffmpeg-style encoder
// diagnostics. The wrapped engine routes all ffmpeg output to stderr,
// so these shapes are routine operation, not failures.
func DefaultNoiseRules() []NoiseRule {
	return []NoiseRule{
		{
			Name:    "blank",
			Pattern: regexp.MustCompile(`^\s*$`),
		},
		{
			// Live encode counters: frame=120 fps=30 q=28.0 size=... bitrate=... speed=1.0x
			Name:    "encoder_progress",
			Pattern: regexp.MustCompile(`^\s*(?:frame|size)=\s*\S+.*\b(?:fps|bitrate|speed)=`),
		},
		{
			Name:    "mux_summary",
			Pattern: regexp.MustCompile(`^\s*video:\s*\d+\S*\s+audio:\s*\d+\S*.*muxing overhead`),
		},
		{
			Name:    "version_banner",
			Pattern: regexp.MustCompile(`^(?:ffmpeg|ffprobe|ffplay) version \S+`),
		},
		{
			Name:    "build_banner",
			Pattern: regexp.MustCompile(`^\s*(?:built with|configuration:)`),
		},
		{
			Name:    "library_banner",
			Pattern: regexp.MustCompile(`^\s*lib(?:avutil|avcodec|avformat|avdevice|avfilter|swscale|swresample|postproc)\s+\d`),
		},
		{
			Name:    "container_banner",
			Pattern: regexp.MustCompile(`^(?:Input|Output) #\d+`),
		},
		{
			Name:    "stream_metadata",
			Pattern: regexp.MustCompile(`^\s*(?:Duration:|Metadata:|Stream #\d|Stream mapping:|Side data:|Chapters?:)`),
		},
		{
			Name:    "metadata_field",
			Pattern: regexp.MustCompile(`^\s{2,}(?:encoder|handler_name|creation_time|major_brand|minor_version|compatible_brands|vendor_id|title|artist|comment)\s*:`),
		},
		{
			// Codec parameter banners such as "[libx264 @ 0x55d3...] using cpu capabilities"
			Name:    "codec_banner",
			Pattern: regexp.MustCompile(`^\[(?:libx264|libx265|libvpx[^\]]*|aac|mp3|opus|h264|hevc|mpeg4|vp9|swscaler|graph[^\]]*|Parsed_[^\]]*)\s+@\s+0x[0-9a-fA-F]+\]`),
		},
		{
			Name:    "interactive_prompt",
			Pattern: regexp.MustCompile(`Press \[q\] to stop|\[y/N\]\s*$|already exists\. Overwrite\s*\?`),
		},
	}
}

// NewNoiseFilter builds a filter from the given ordered rules, falling
// back to the default denylist when none are provided.
func NewNoiseFilter(rules ...NoiseRule) *NoiseFilter {
	if len(rules) == 0 {
		rules = DefaultNoiseRules()
	}
	return &NoiseFilter{rules: rules}
}

// Match reports the first rule matching line, if any. First match wins.
func (f *NoiseFilter) Match(line string) (string, bool) {
	for _, rule := range f.rules {
		if rule.Pattern.MatchString(line) {
			return rule.Name, true
		}
	}
	return "", false
}
