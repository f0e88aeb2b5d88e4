// Package gallery implements landmark-based DOM extraction (GalleryNavigator,
// C7) and the incremental scan-as-you-scroll boundary search (BoundaryScanner,
// C8) used by the generation downloader.
package gallery

// Metadata is what GalleryNavigator extracts from one active thumbnail or
// gallery container (spec §4.6).
type Metadata struct {
	CreationTime string
	Prompt       string
}

// Selectors carries the site-specific landmark text/attributes a caller may
// override (spec §6: START_GENERATION_DOWNLOADS' value carries "selectors
// ..."); every field defaults to the landmark text spec §4.6 names.
type Selectors struct {
	ImageToVideoLabel  string
	CreationTimeLabel  string
	DownloadIconID     string
	DownloadDataAttr   string
	ContainerSelector  string
	DownloadMenuItem   string
}

// DefaultSelectors returns spec §4.6's landmark text as the zero-config
// default; callers override individual fields via START_GENERATION_DOWNLOADS.
func DefaultSelectors() Selectors {
	return Selectors{
		ImageToVideoLabel: "Image to video",
		CreationTimeLabel: "Creation Time",
		DownloadIconID:    "icon-download",
		DownloadDataAttr:  "data-download",
		ContainerSelector: "[data-generation-id]",
		DownloadMenuItem:  "Download without Watermark",
	}
}

// WithDefaults returns s with every empty field filled from
// DefaultSelectors; exported for callers outside this package (e.g. the
// generation adapter translating a workflow action's selector map).
func (s Selectors) WithDefaults() Selectors {
	return s.withDefaults()
}

func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.ImageToVideoLabel == "" {
		s.ImageToVideoLabel = d.ImageToVideoLabel
	}
	if s.CreationTimeLabel == "" {
		s.CreationTimeLabel = d.CreationTimeLabel
	}
	if s.DownloadIconID == "" {
		s.DownloadIconID = d.DownloadIconID
	}
	if s.DownloadDataAttr == "" {
		s.DownloadDataAttr = d.DownloadDataAttr
	}
	if s.ContainerSelector == "" {
		s.ContainerSelector = d.ContainerSelector
	}
	if s.DownloadMenuItem == "" {
		s.DownloadMenuItem = d.DownloadMenuItem
	}
	return s
}
