package pack

import (
	"encoding/json"
	"fmt"
)

// Status is the position of a pack in its publication lifecycle.
type Status int

const (
	StatusNew Status = iota
	StatusMetadataLoaded
	StatusMarketplaceFiltered
	StatusContentCollected
	StatusImagesUploaded
	StatusModifiedDetected
	StatusMetadataFormatted
	StatusReleaseNotesPrepared
	StatusSignedZipped
	StatusUploaded
	StatusIndexMerged
	StatusSuccess

	StatusNotRelevantForMarketplace
	StatusPackAlreadyExists
	StatusNotUpdatedInRunningBuild

	StatusFailedLoadingUserMetadata
	StatusFailedCollectItems
	StatusFailedImagesUpload
	StatusFailedDetectingModifiedFiles
	StatusFailedMetadataParsing
	StatusFailedMetadataReformatting
	StatusFailedReleaseNotes
	StatusFailedRemovingSkippedFolders
	StatusFailedSigningPacks
	StatusFailedZippingPackArtifacts
	StatusFailedUploadingPack
	StatusFailedPreviewImagesUpload
	StatusFailedSearchingPackInIndex
	StatusFailedPreparingIndexFolder
	StatusFailedUpdatingIndexFolder
	StatusFailedDependenciesZipSigning
	StatusFailedDependenciesZipUploading

	statusCount
)

// Kind classifies a Status.
type Kind int

const (
	KindPending Kind = iota
	KindSuccess
	KindSkip
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindSkip:
		return "skip"
	case KindFailure:
		return "failure"
	default:
		return "pending"
	}
}

type statusInfo struct {
	name  string
	label string
	kind  Kind
}

var statusTable = [statusCount]statusInfo{
	StatusNew:                  {"NEW", "Pack was created", KindPending},
	StatusMetadataLoaded:       {"METADATA_LOADED", "Pack user metadata was loaded", KindPending},
	StatusMarketplaceFiltered:  {"MARKETPLACE_FILTERED", "Pack targets the current marketplace", KindPending},
	StatusContentCollected:     {"CONTENT_COLLECTED", "Pack content items were collected", KindPending},
	StatusImagesUploaded:       {"IMAGES_UPLOADED", "Pack images were uploaded", KindPending},
	StatusModifiedDetected:     {"MODIFIED_DETECTED", "Pack modified files were detected", KindPending},
	StatusMetadataFormatted:    {"METADATA_FORMATTED", "Pack metadata was formatted", KindPending},
	StatusReleaseNotesPrepared: {"RELEASE_NOTES_PREPARED", "Pack release notes were prepared", KindPending},
	StatusSignedZipped:         {"SIGNED_ZIPPED", "Pack was signed and zipped", KindPending},
	StatusUploaded:             {"UPLOADED", "Pack was uploaded to storage", KindPending},
	StatusIndexMerged:          {"INDEX_MERGED", "Pack was merged into the index", KindPending},
	StatusSuccess:              {"SUCCESS", "Successfully uploaded pack data to storage", KindSuccess},

	StatusNotRelevantForMarketplace: {"NOT_RELEVANT_FOR_MARKETPLACE", "Pack is not relevant for the current marketplace", KindSkip},
	StatusPackAlreadyExists:         {"PACK_ALREADY_EXISTS", "Specified pack already exists in storage", KindSkip},
	StatusNotUpdatedInRunningBuild:  {"PACK_IS_NOT_UPDATED_IN_RUNNING_BUILD", "Pack is not updated in the running build", KindSkip},

	StatusFailedLoadingUserMetadata:      {"FAILED_LOADING_USER_METADATA", "Failed in loading user defined pack metadata", KindFailure},
	StatusFailedCollectItems:             {"FAILED_COLLECT_ITEMS", "Failed to collect pack content items data", KindFailure},
	StatusFailedImagesUpload:             {"FAILED_IMAGES_UPLOAD", "Failed to upload pack integration and author images", KindFailure},
	StatusFailedDetectingModifiedFiles:   {"FAILED_DETECTING_MODIFIED_FILES", "Failed in detecting modified files of the pack", KindFailure},
	StatusFailedMetadataParsing:          {"FAILED_METADATA_PARSING", "Failed formatting the pack metadata", KindFailure},
	StatusFailedMetadataReformatting:     {"FAILED_METADATA_REFORMATING", "Failed to reparse the pack metadata with its dependencies", KindFailure},
	StatusFailedReleaseNotes:             {"FAILED_RELEASE_NOTES", "Failed to generate changelog.json", KindFailure},
	StatusFailedRemovingSkippedFolders:   {"FAILED_REMOVING_PACK_SKIPPED_FOLDERS", "Failed to remove pack hidden and skipped folders", KindFailure},
	StatusFailedSigningPacks:             {"FAILED_SIGNING_PACKS", "Failed to sign the pack", KindFailure},
	StatusFailedZippingPackArtifacts:     {"FAILED_ZIPPING_PACK_ARTIFACTS", "Failed zipping pack artifacts", KindFailure},
	StatusFailedUploadingPack:            {"FAILED_UPLOADING_PACK", "Failed in uploading pack zip to storage", KindFailure},
	StatusFailedPreviewImagesUpload:      {"FAILED_PREVIEW_IMAGES_UPLOAD", "Failed to upload pack preview images", KindFailure},
	StatusFailedSearchingPackInIndex:     {"FAILED_SEARCHING_PACK_IN_INDEX", "Failed in searching pack folder in the index", KindFailure},
	StatusFailedPreparingIndexFolder:     {"FAILED_PREPARING_INDEX_FOLDER", "Failed in preparing and cleaning necessary index files", KindFailure},
	StatusFailedUpdatingIndexFolder:      {"FAILED_UPDATING_INDEX_FOLDER", "Failed updating index folder", KindFailure},
	StatusFailedDependenciesZipSigning:   {"FAILED_CREATING_DEPENDENCIES_ZIP_SIGNING", "Failed signing pack while zipping it with its dependencies", KindFailure},
	StatusFailedDependenciesZipUploading: {"FAILED_CREATING_DEPENDENCIES_ZIP_UPLOADING", "Failed uploading pack with its dependencies zip", KindFailure},
}

func (s Status) info() statusInfo {
	if s < 0 || s >= statusCount {
		return statusInfo{name: fmt.Sprintf("STATUS_%d", int(s)), label: "Unknown status", kind: KindFailure}
	}
	return statusTable[s]
}

// String returns the stable name of the status, e.g. FAILED_UPLOADING_PACK.
func (s Status) String() string { return s.info().name }

// Label is the human readable description shown in summaries.
func (s Status) Label() string { return s.info().label }

func (s Status) Kind() Kind { return s.info().kind }

// Terminal reports whether the pack left its pipeline.
func (s Status) Terminal() bool { return s.Kind() != KindPending }

func (s Status) Failed() bool { return s.Kind() == KindFailure }

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, ok := ParseStatus(name)
	if !ok {
		return fmt.Errorf("unknown pack status %q", name)
	}
	*s = parsed
	return nil
}

// ParseStatus looks a status up by its stable name.
func ParseStatus(name string) (Status, bool) {
	for s := Status(0); s < statusCount; s++ {
		if statusTable[s].name == name {
			return s, true
		}
	}
	return 0, false
}
