package tools

import "fmt"

// CompressionLevel selects a Ghostscript quality profile.
const (
	CompressionLow     = "low"
	CompressionMedium  = "medium"
	CompressionExtreme = "extreme"
)

// Profile is a named set of Ghostscript parameters bound to a compression
// level. The table below is normative: the parameters must stay exactly as
// they are to keep outputs bit-compatible across deployments.
type Profile struct {
	Preset      string
	JPEGQuality int
	ColorDPI    int
	GrayDPI     int
	MonoDPI     int
}

var profiles = map[string]Profile{
	CompressionLow:     {Preset: "printer", JPEGQuality: 100, ColorDPI: 300, GrayDPI: 300, MonoDPI: 300},
	CompressionMedium:  {Preset: "ebook", JPEGQuality: 70, ColorDPI: 120, GrayDPI: 120, MonoDPI: 300},
	CompressionExtreme: {Preset: "screen", JPEGQuality: 25, ColorDPI: 36, GrayDPI: 36, MonoDPI: 100},
}

// ProfileFor returns the profile for the given level. An empty level means
// medium; an unknown level is an input error.
func ProfileFor(level string) (Profile, error) {
	if level == "" {
		level = CompressionMedium
	}
	p, ok := profiles[level]
	if !ok {
		return Profile{}, inputErrorf("unknown compressionLevel %q", level)
	}
	return p, nil
}

// GhostscriptArgs builds the full argument list for one compression
// invocation: profile parameters, the common flag set, optional grayscale
// conversion, then output and input paths.
func (p Profile) GhostscriptArgs(input, output string, grayscale bool) []string {
	args := []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		fmt.Sprintf("-dPDFSETTINGS=/%s", p.Preset),
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-dAutoFilterColorImages=false",
		"-dAutoFilterGrayImages=false",
		"-sColorImageFilter=/DCTEncode",
		"-sGrayImageFilter=/DCTEncode",
		fmt.Sprintf("-dJPEGQ=%d", p.JPEGQuality),
		"-dDownsampleColorImages=true",
		"-dColorImageDownsampleType=/Bicubic",
		fmt.Sprintf("-dColorImageResolution=%d", p.ColorDPI),
		"-dDownsampleGrayImages=true",
		"-dGrayImageDownsampleType=/Bicubic",
		fmt.Sprintf("-dGrayImageResolution=%d", p.GrayDPI),
		"-dDownsampleMonoImages=true",
		"-dMonoImageDownsampleType=/Subsample",
		fmt.Sprintf("-dMonoImageResolution=%d", p.MonoDPI),
		"-dDetectDuplicateImages=true",
		"-dCompressFonts=true",
		"-dSubsetFonts=true",
		"-dFastWebView=true",
	}
	if grayscale {
		args = append(args,
			"-sProcessColorModel=DeviceGray",
			"-sColorConversionStrategy=Gray",
			"-dOverrideICC",
		)
	}
	args = append(args, "-o", output, input)
	return args
}
