package config

import "time"

var (
	TokenRequestTimeout    = 10 * time.Second
	MetadataRequestTimeout = 15 * time.Second
	CoverDownloadTimeout   = 15 * time.Second
)
