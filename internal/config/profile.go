package config

import (
	"cameo/internal/inference"
	"cameo/internal/relate"
	"cameo/internal/storage"
)

// SpatialTable names a table that gets point geometry and its coordinate
// columns.
type SpatialTable struct {
	Table string `json:"table" yaml:"table"`
	Lat   string `json:"lat" yaml:"lat"`
	Lon   string `json:"lon" yaml:"lon"`
}

// AttachmentTable names a table that accepts attachments and the column
// whose value matches the attachment folder names.
type AttachmentTable struct {
	Table     string `json:"table" yaml:"table"`
	JoinField string `json:"join_field" yaml:"join_field"`
}

// Profile is the static declaration of an export format: which tables are
// spatial, which carry attachments, and how tables relate.
type Profile struct {
	Name             string            `json:"name" yaml:"name"`
	FileExtension    string            `json:"file_extension" yaml:"file_extension"`
	AttachmentDir    string            `json:"attachment_dir" yaml:"attachment_dir"`
	SRID             int               `json:"srid" yaml:"srid"`
	LengthPolicy     string            `json:"length_policy" yaml:"length_policy"`
	SpatialTables    []SpatialTable    `json:"spatial_tables" yaml:"spatial_tables"`
	AttachmentTables []AttachmentTable `json:"attachment_tables" yaml:"attachment_tables"`
	Relationships    []relate.Block    `json:"relationships" yaml:"relationships"`
	Parser           Options           `json:"parser" yaml:"parser"`
}

// Spatial returns the spatial declaration for table, matched
// case-insensitively.
func (p Profile) Spatial(table string) (SpatialTable, bool) {
	for _, s := range p.SpatialTables {
		if storage.SameName(s.Table, table) {
			return s, true
		}
	}
	return SpatialTable{}, false
}

// Policy resolves LengthPolicy, defaulting to the wide ladder.
func (p Profile) Policy() (inference.LengthPolicy, error) {
	if p.LengthPolicy == "" {
		return inference.WideLadder, nil
	}
	return inference.PolicyByName(p.LengthPolicy)
}

// DefaultProfile is the CAMEO export declaration.
func DefaultProfile() Profile {
	return Profile{
		Name:          "cameo",
		FileExtension: ".mer",
		AttachmentDir: "SitePlansTemp",
		SRID:          storage.DefaultSRID,
		LengthPolicy:  inference.WideLadder.Name,
		SpatialTables: []SpatialTable{
			{Table: "Facilities", Lat: "Latitude", Lon: "Longitude"},
			{Table: "SpecialLocations", Lat: "SpLatitude", Lon: "SpLongitude"},
			{Table: "Incidents", Lat: "InLatitude", Lon: "InLongitude"},
			{Table: "Resources", Lat: "ReLatitude", Lon: "ReLongitude"},
		},
		AttachmentTables: []AttachmentTable{
			{Table: "Facilities", JoinField: "FacilityRecordID"},
			{Table: "SpecialLocations", JoinField: "SpecialLocRecordID"},
			{Table: "Incidents", JoinField: "IncidentRecordID"},
			{Table: "Resources", JoinField: "ResourceRecordID"},
			{Table: "Routes", JoinField: "RouteRecordID"},
			{Table: "Contacts", JoinField: "ContactRecordID"},
		},
		Relationships: []relate.Block{
			{Table: "Facilities", Links: []relate.Link{
				{"Facilities": "FacilityRecordID"},
				{"FacilityIDs": "FacilityRecordID"},
				{"Incidents": "FacilityRouteRecordID"},
				{"ChemInvLocations": "FacilityRouteRecordID"},
				{"ScreeningAndScenarios": "FacilityRouteRecordID"},
				{"ContactsLink": "OtherRecordID"},
				{"Phone": "ParentRecordID"},
				{"SitePlanLink": "FacilityRecordID"},
				{"MapData": "ParentRecordID"},
			}},
			{Table: "Incidents", Links: []relate.Link{
				{"Incidents": "IncidentRecordID"},
				{"IncidentMaterials": "IncidentRecordID"},
				{"ContactsLink": "OtherRecordID"},
				{"SitePlanLink": "FacilityRecordID"},
			}},
			{Table: "SpecialLocations", Links: []relate.Link{
				{"SpecialLocations": "SpecialLocRecordID"},
				{"ContactsLink": "OtherRecordID"},
				{"Phone": "ParentRecordID"},
				{"SitePlanLink": "FacilityRecordID"},
				{"MapData": "ParentRecordID"},
			}},
			{Table: "Resources", Links: []relate.Link{
				{"Resources": "ResourceRecordID"},
				{"ResourceEquipt": "RecordKey"},
				{"ContactsLink": "OtherRecordID"},
				{"Phone": "ParentRecordID"},
				{"SitePlanLink": "FacilityRecordID"},
				{"MapData": "ParentRecordID"},
			}},
			{Table: "Routes", Links: []relate.Link{
				{"Routes": "RouteRecordID"},
				{"RouteIntersections": "RouteRecordID"},
				{"Incidents": "FacilityRouteRecordID"},
				{"ChemInvLocations": "FacilityRouteRecordID"},
				{"ScreeningAndScenarios": "FacilityRouteRecordID"},
				{"SitePlanLink": "FacilityRecordID"},
				{"MapData": "ParentRecordID"},
			}},
			{Table: "ChemInvLocations", Links: []relate.Link{
				{"ChemInvLocations": "ChemInInvRecordID"},
				{"ChemicalsInInventory": "ChemInvRecordID"},
				{"ChemInvMixtures": "ChemInvRecID"},
			}},
			{Table: "Contacts", Links: []relate.Link{
				{"Contacts": "ContactRecordID"},
				{"Phone": "ParentRecordID"},
				{"ContactsLink": "ContactRecordID"},
				{"SitePlanLink": "FacilityRecordID"},
			}},
		},
		Parser: Options{
			"comma":       ",",
			"lazy_quotes": true,
			"encoding":    "utf-8",
		},
	}
}
