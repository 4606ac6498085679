package render

import (
	"bytes"
	"encoding/xml"
	"text/template"
)

const (
	nsA = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"`
	nsR = `xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
	nsP = `xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

	relSlide       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relSlideLayout = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"
	relSlideMaster = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster"
	relNotesSlide  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide"
	relNotesMaster = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesMaster"
	relTheme       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme"
	relPresProps   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/presProps"
	relViewProps   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/viewProps"
	relTableStyles = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/tableStyles"
	relOfficeDoc   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relCoreProps   = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"

	ctPresentation = "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"
	ctSlide        = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"
	ctSlideLayout  = "application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"
	ctSlideMaster  = "application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"
	ctNotesSlide   = "application/vnd.openxmlformats-officedocument.presentationml.notesSlide+xml"
	ctNotesMaster  = "application/vnd.openxmlformats-officedocument.presentationml.notesMaster+xml"
	ctTheme        = "application/vnd.openxmlformats-officedocument.theme+xml"
	ctPresProps    = "application/vnd.openxmlformats-officedocument.presentationml.presProps+xml"
	ctViewProps    = "application/vnd.openxmlformats-officedocument.presentationml.viewProps+xml"
	ctTableStyles  = "application/vnd.openxmlformats-officedocument.presentationml.tableStyles+xml"
	ctCoreProps    = "application/vnd.openxmlformats-package.core-properties+xml"
)

// slideNumberFieldID is the fixed GUID PowerPoint uses for slide number fields.
const slideNumberFieldID = "{B6F15528-21DE-4FAA-801E-634DDDAF4B2B}"

// relationship is one entry of a .rels part.
type relationship struct {
	ID     string
	Type   string
	Target string
}

// override is one [Content_Types].xml part override.
type override struct {
	PartName    string
	ContentType string
}

// run is a single run of formatted text, or a slide number field.
type run struct {
	Text     string
	Size     int // hundredths of a point
	Bold     bool
	Italic   bool
	Color    string
	Font     string
	SlideNum bool
}

// paragraph is one a:p element.
type paragraph struct {
	Level  int
	Bullet bool
	Align  string // "l", "ctr", "r"
	Runs   []run
}

// shape is a positioned rectangle, optionally filled and carrying text.
type shape struct {
	ID         int
	Name       string
	X, Y, W, H int64
	Fill       string
	Anchor     string // "t", "ctr", "b"
	Paragraphs []paragraph
	// Placeholder marks the notes body placeholder.
	Placeholder bool
}

// slidePart is the template data for one slide or notes slide.
type slidePart struct {
	Background string
	Shapes     []shape
}

type presentationPart struct {
	SlideRelIDs      []string
	NotesMasterRelID string
	Width, Height    int64
}

type corePart struct {
	Title   string
	Creator string
	Created string
}

type themePart struct {
	Name      string
	Primary   string
	Secondary string
	Dark      string
	Light     string
	Font      string
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// marginFor is the left margin of a bulleted paragraph at level, in EMU.
func marginFor(level int) int64 {
	return int64(level+1) * 285750
}

var partTemplates = template.Must(template.New("pptx").Funcs(template.FuncMap{
	"x":       xmlEscape,
	"marL":    marginFor,
	"add":     func(a, b int) int { return a + b },
	"fieldID": func() string { return slideNumberFieldID },
}).Parse(`
{{define "rels"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">{{range .}}<Relationship Id="{{.ID}}" Type="{{.Type}}" Target="{{.Target}}"/>{{end}}</Relationships>{{end}}

{{define "contentTypes"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/>{{range .}}<Override PartName="{{.PartName}}" ContentType="{{.ContentType}}"/>{{end}}</Types>{{end}}

{{define "core"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"><dc:title>{{x .Title}}</dc:title><dc:subject>Federal Register Analysis</dc:subject><dc:creator>{{x .Creator}}</dc:creator><dcterms:created xsi:type="dcterms:W3CDTF">{{.Created}}</dcterms:created></cp:coreProperties>{{end}}

{{define "presentation"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:presentation ` + nsA + ` ` + nsR + ` ` + nsP + ` saveSubsetFonts="1"><p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst><p:notesMasterIdLst><p:notesMasterId r:id="{{.NotesMasterRelID}}"/></p:notesMasterIdLst><p:sldIdLst>{{range $i, $id := .SlideRelIDs}}<p:sldId id="{{add 256 $i}}" r:id="{{$id}}"/>{{end}}</p:sldIdLst><p:sldSz cx="{{.Width}}" cy="{{.Height}}"/><p:notesSz cx="6858000" cy="9144000"/></p:presentation>{{end}}

{{define "presProps"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:presentationPr ` + nsA + ` ` + nsR + ` ` + nsP + `/>{{end}}

{{define "viewProps"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:viewPr ` + nsA + ` ` + nsR + ` ` + nsP + `><p:normalViewPr><p:restoredLeft sz="15620"/><p:restoredTop sz="94660"/></p:normalViewPr><p:gridSpacing cx="76200" cy="76200"/></p:viewPr>{{end}}

{{define "tableStyles"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<a:tblStyleLst ` + nsA + ` def="{5C22544A-7EE6-4342-B048-85BDC9FD1C3A}"/>{{end}}

{{define "spTreeStart"}}<p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>{{end}}

{{define "master"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sldMaster ` + nsA + ` ` + nsR + ` ` + nsP + `><p:cSld><p:bg><p:bgRef idx="1001"><a:schemeClr val="bg1"/></p:bgRef></p:bg>{{template "spTreeStart"}}</p:spTree></p:cSld><p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/><p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst></p:sldMaster>{{end}}

{{define "layout"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sldLayout ` + nsA + ` ` + nsR + ` ` + nsP + ` type="blank" preserve="1"><p:cSld name="Blank">{{template "spTreeStart"}}</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sldLayout>{{end}}

{{define "notesMaster"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:notesMaster ` + nsA + ` ` + nsR + ` ` + nsP + `><p:cSld>{{template "spTreeStart"}}</p:spTree></p:cSld><p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/></p:notesMaster>{{end}}

{{define "run"}}{{if .SlideNum}}<a:fld id="{{fieldID}}" type="slidenum"><a:rPr lang="en-US" sz="{{.Size}}" dirty="0"><a:solidFill><a:srgbClr val="{{.Color}}"/></a:solidFill><a:latin typeface="{{.Font}}"/></a:rPr><a:t>‹#›</a:t></a:fld>{{else}}<a:r><a:rPr lang="en-US" sz="{{.Size}}"{{if .Bold}} b="1"{{end}}{{if .Italic}} i="1"{{end}} dirty="0"><a:solidFill><a:srgbClr val="{{.Color}}"/></a:solidFill><a:latin typeface="{{.Font}}"/></a:rPr><a:t>{{x .Text}}</a:t></a:r>{{end}}{{end}}

{{define "paragraph"}}<a:p><a:pPr{{if .Bullet}} marL="{{marL .Level}}" indent="-228600"{{end}}{{if gt .Level 0}} lvl="{{.Level}}"{{end}} algn="{{or .Align "l"}}"><a:spcAft><a:spcPts val="600"/></a:spcAft>{{if .Bullet}}<a:buFont typeface="Arial"/><a:buChar char="•"/>{{else}}<a:buNone/>{{end}}</a:pPr>{{range .Runs}}{{template "run" .}}{{end}}</a:p>{{end}}

{{define "shape"}}<p:sp><p:nvSpPr><p:cNvPr id="{{.ID}}" name="{{x .Name}}"/><p:cNvSpPr{{if not .Placeholder}} txBox="1"{{end}}/><p:nvPr>{{if .Placeholder}}<p:ph type="body" idx="1"/>{{end}}</p:nvPr></p:nvSpPr><p:spPr><a:xfrm><a:off x="{{.X}}" y="{{.Y}}"/><a:ext cx="{{.W}}" cy="{{.H}}"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom>{{if .Fill}}<a:solidFill><a:srgbClr val="{{.Fill}}"/></a:solidFill>{{else}}<a:noFill/>{{end}}</p:spPr>{{if .Paragraphs}}<p:txBody><a:bodyPr wrap="square" lIns="91440" tIns="45720" rIns="91440" bIns="45720" anchor="{{or .Anchor "t"}}"><a:normAutofit/></a:bodyPr><a:lstStyle/>{{range .Paragraphs}}{{template "paragraph" .}}{{end}}</p:txBody>{{end}}</p:sp>{{end}}

{{define "slide"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld ` + nsA + ` ` + nsR + ` ` + nsP + `><p:cSld>{{if .Background}}<p:bg><p:bgPr><a:solidFill><a:srgbClr val="{{.Background}}"/></a:solidFill><a:effectLst/></p:bgPr></p:bg>{{end}}{{template "spTreeStart"}}{{range .Shapes}}{{template "shape" .}}{{end}}</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>{{end}}

{{define "notes"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:notes ` + nsA + ` ` + nsR + ` ` + nsP + `><p:cSld>{{template "spTreeStart"}}{{range .Shapes}}{{template "shape" .}}{{end}}</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:notes>{{end}}

{{define "theme"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<a:theme ` + nsA + ` name="{{x .Name}}"><a:themeElements><a:clrScheme name="{{x .Name}}"><a:dk1><a:srgbClr val="{{.Dark}}"/></a:dk1><a:lt1><a:srgbClr val="FFFFFF"/></a:lt1><a:dk2><a:srgbClr val="{{.Primary}}"/></a:dk2><a:lt2><a:srgbClr val="EEEEEE"/></a:lt2><a:accent1><a:srgbClr val="{{.Primary}}"/></a:accent1><a:accent2><a:srgbClr val="{{.Secondary}}"/></a:accent2><a:accent3><a:srgbClr val="{{.Light}}"/></a:accent3><a:accent4><a:srgbClr val="{{.Dark}}"/></a:accent4><a:accent5><a:srgbClr val="{{.Secondary}}"/></a:accent5><a:accent6><a:srgbClr val="{{.Primary}}"/></a:accent6><a:hlink><a:srgbClr val="{{.Secondary}}"/></a:hlink><a:folHlink><a:srgbClr val="{{.Light}}"/></a:folHlink></a:clrScheme><a:fontScheme name="{{x .Name}}"><a:majorFont><a:latin typeface="{{.Font}}"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont><a:minorFont><a:latin typeface="{{.Font}}"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont></a:fontScheme><a:fmtScheme name="{{x .Name}}"><a:fillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:fillStyleLst><a:lnStyleLst><a:ln w="6350"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="12700"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="19050"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln></a:lnStyleLst><a:effectStyleLst><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle></a:effectStyleLst><a:bgFillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:bgFillStyleLst></a:fmtScheme></a:themeElements></a:theme>{{end}}
`))
