// Package dataset is the CDB dataset catalogue: the three-digit integer
// code paired with a directory name (spec.md §3 "Dataset"), grounded on
// CDBDataset.{h,cpp} in the original CDBTo3DTiles source.
package dataset

// Dataset is a CDB dataset code.
type Dataset int

const (
	MultipleContents Dataset = 0
	Elevation        Dataset = 1
	MinMaxElevation  Dataset = 2
	MaxCulture       Dataset = 3
	Imagery          Dataset = 4
	RMTexture        Dataset = 5
	RMDescriptor     Dataset = 6

	GSFeature    Dataset = 100
	GTFeature    Dataset = 101
	GeoPolitical Dataset = 102

	VectorMaterial     Dataset = 200
	RoadNetwork        Dataset = 201
	RailRoadNetwork    Dataset = 202
	PowerlineNetwork   Dataset = 203
	HydrographyNetwork Dataset = 204

	GSModelGeometry           Dataset = 300
	GSModelTexture            Dataset = 301
	GSModelSignature          Dataset = 302
	GSModelDescriptor         Dataset = 303
	GSModelMaterial           Dataset = 304
	GSModelInteriorGeometry   Dataset = 305
	GSModelInteriorTexture    Dataset = 306
	GSModelInteriorDescriptor Dataset = 307
	GSModelInteriorMaterial   Dataset = 308
	GSModelCMT                Dataset = 309
	T2DModelGeometry          Dataset = 310
	GSModelInteriorCMT        Dataset = 311
	T2DModelCMT               Dataset = 312

	NavData    Dataset = 400
	Navigation Dataset = 401

	GTModelGeometry500        Dataset = 500
	GTModelGeometry510        Dataset = 510
	GTModelTexture            Dataset = 511
	GTModelSignature          Dataset = 512
	GTModelDescriptor         Dataset = 503
	GTModelMaterial           Dataset = 504
	GTModelCMT                Dataset = 505
	GTModelInteriorGeometry   Dataset = 506
	GTModelInteriorTexture    Dataset = 507
	GTModelInteriorDescriptor Dataset = 508
	GTModelInteriorMaterial   Dataset = 509
	GTModelInteriorCMT        Dataset = 513

	MModelGeometry  Dataset = 600
	MModelTexture   Dataset = 601
	MModelSignature Dataset = 606
	MModelDescriptor Dataset = 603
	MModelMaterial  Dataset = 604
	MModelCMT       Dataset = 605

	Metadata       Dataset = 700
	ClientSpecific Dataset = 701
)

var directoryNames = map[Dataset]string{
	MultipleContents: "MultipleContents",
	Elevation:        "Elevation",
	MinMaxElevation:  "MinMaxElevation",
	MaxCulture:       "MaxCulture",
	Imagery:          "Imagery",
	RMTexture:        "RMTexture",
	RMDescriptor:     "RMDescriptor",

	GSFeature:    "GSFeature",
	GTFeature:    "GTFeature",
	GeoPolitical: "GeoPolitical",

	VectorMaterial:     "VectorMaterial",
	RoadNetwork:        "RoadNetwork",
	RailRoadNetwork:    "RailRoadNetwork",
	PowerlineNetwork:   "PowerLineNetwork",
	HydrographyNetwork: "HydrographyNetwork",

	GSModelGeometry:           "GSModelGeometry",
	GSModelTexture:            "GSModelTexture",
	GSModelSignature:          "GSModelSignature",
	GSModelDescriptor:         "GSModelDescriptor",
	GSModelMaterial:           "GSModelMaterial",
	GSModelInteriorGeometry:   "GSModelInteriorGeometry",
	GSModelInteriorTexture:    "GSModelInteriorTexture",
	GSModelInteriorDescriptor: "GSModelInteriorDescriptor",
	GSModelInteriorMaterial:   "GSModelInteriorMaterial",
	GSModelCMT:                "GSModelCMT",
	T2DModelGeometry:          "T2DModelGeometry",
	GSModelInteriorCMT:        "GSModelInteriorCMT",
	T2DModelCMT:               "T2DModelCMT",

	NavData:    "NavData",
	Navigation: "Navigation",

	GTModelGeometry500:        "GTModelGeometry",
	GTModelGeometry510:        "GTModelGeometry",
	GTModelTexture:            "GTModelTexture",
	GTModelSignature:          "GTModelSignature",
	GTModelDescriptor:         "GTModelDescriptor",
	GTModelMaterial:           "GTModelMaterial",
	GTModelCMT:                "GTModelCMT",
	GTModelInteriorGeometry:   "GTModelInteriorGeometry",
	GTModelInteriorTexture:    "GTModelInteriorTexture",
	GTModelInteriorDescriptor: "GTModelInteriorDescriptor",
	GTModelInteriorMaterial:   "GTModelInteriorMaterial",
	GTModelInteriorCMT:        "GTModelInteriorCMT",

	MModelGeometry:   "MModelGeometry",
	MModelTexture:    "MModelTexture",
	MModelSignature:  "MModelSignature",
	MModelDescriptor: "MModelDescriptor",
	MModelMaterial:   "MModelMaterial",
	MModelCMT:        "MModelCMT",

	Metadata:       "Metadata",
	ClientSpecific: "ClientSpecific",
}

// DirectoryName returns the Name part of the "NNN_Name" directory form
// (e.g. "Elevation"), or "", false if the code is not part of the
// catalogue.
func DirectoryName(d Dataset) (string, bool) {
	name, ok := directoryNames[d]
	return name, ok
}

// Valid reports whether value is a recognised dataset code.
func Valid(value int) bool {
	_, ok := directoryNames[Dataset(value)]
	return ok
}

// Names returns every valid dataset's directory name, used to build the
// "unrecognised dataset" config-error message (spec.md §6 --combine).
func Names() []string {
	names := make([]string, 0, len(directoryNames))
	for _, n := range directoryNames {
		names = append(names, n)
	}
	return names
}
