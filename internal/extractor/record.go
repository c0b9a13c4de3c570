package extractor

import "encoding/xml"

// rawRecord mirrors the shape of a Windows Security event XML record once
// its namespace has been stripped by internal/eventsource, the same shape
// used by other Go Windows event-log readers in this codebase's lineage
// (see the EventLogCollector.XMLEvent pattern): a typed System header plus a
// free-form EventData/Data name/value list.
type rawRecord struct {
	XMLName xml.Name `xml:"Event"`
	System  struct {
		EventID     int `xml:"EventID"`
		TimeCreated struct {
			SystemTime string `xml:"SystemTime,attr"`
		} `xml:"TimeCreated"`
	} `xml:"System"`
	EventData struct {
		Data []dataField `xml:"Data"`
	} `xml:"EventData"`
	UserData struct {
		LogFileCleared struct {
			SubjectUserName   string `xml:"SubjectUserName"`
			SubjectDomainName string `xml:"SubjectDomainName"`
		} `xml:"LogFileCleared"`
	} `xml:"UserData"`
}

type dataField struct {
	Name  string `xml:"Name,attr"`
	Value string `xml:",chardata"`
}

// fields indexes EventData/Data by Name for O(1) lookup during dispatch.
func (r *rawRecord) fields() map[string]string {
	m := make(map[string]string, len(r.EventData.Data))
	for _, d := range r.EventData.Data {
		m[d.Name] = d.Value
	}
	return m
}

func parseRecord(recordXML []byte) (*rawRecord, error) {
	var rec rawRecord
	if err := xml.Unmarshal(recordXML, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
