package description

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/upnp-engine/upnp-go/pkg/upnp"
)

// Parse errors.
var (
	ErrNoDevice = errors.New("description has no device element")
	ErrNoUDN    = errors.New("device without UDN")
)

type xmlRoot struct {
	XMLName xml.Name  `xml:"root"`
	URLBase string    `xml:"URLBase"`
	Device  xmlDevice `xml:"device"`
}

type xmlDevice struct {
	DeviceType      string       `xml:"deviceType"`
	FriendlyName    string       `xml:"friendlyName"`
	Manufacturer    string       `xml:"manufacturer"`
	ModelName       string       `xml:"modelName"`
	ModelNumber     string       `xml:"modelNumber"`
	SerialNumber    string       `xml:"serialNumber"`
	UDN             string       `xml:"UDN"`
	PresentationURL string       `xml:"presentationURL"`
	Icons           []xmlIcon    `xml:"iconList>icon"`
	Services        []xmlService `xml:"serviceList>service"`
	Devices         []xmlDevice  `xml:"deviceList>device"`
}

type xmlIcon struct {
	MimeType string `xml:"mimetype"`
	Width    int    `xml:"width"`
	Height   int    `xml:"height"`
	Depth    int    `xml:"depth"`
	URL      string `xml:"url"`
}

type xmlService struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	SCPDURL     string `xml:"SCPDURL"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
}

// Parse decodes a device description document. location becomes the root
// device's location; a URLBase element, when present, overrides it for URL
// resolution.
func Parse(doc string, location *url.URL) (*upnp.Device, error) {
	var root xmlRoot
	if err := xml.Unmarshal([]byte(doc), &root); err != nil {
		return nil, fmt.Errorf("parse description: %w", err)
	}
	if root.Device.UDN == "" && root.Device.DeviceType == "" {
		return nil, ErrNoDevice
	}

	device, err := convert(root.Device)
	if err != nil {
		return nil, err
	}
	device.Description = doc
	device.SetLocation(location)

	if base := strings.TrimSpace(root.URLBase); base != "" {
		if u, err := url.Parse(base); err == nil && u.IsAbs() {
			device.SetURLBase(u)
		}
	}
	return device, nil
}

func convert(x xmlDevice) (*upnp.Device, error) {
	udn := strings.TrimSpace(x.UDN)
	if udn == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoUDN, x.DeviceType)
	}

	d := upnp.NewDevice(udn)
	d.DeviceType = strings.TrimSpace(x.DeviceType)
	d.FriendlyName = strings.TrimSpace(x.FriendlyName)
	d.Manufacturer = strings.TrimSpace(x.Manufacturer)
	d.ModelName = strings.TrimSpace(x.ModelName)
	d.ModelNumber = strings.TrimSpace(x.ModelNumber)
	d.SerialNumber = strings.TrimSpace(x.SerialNumber)
	d.PresentationURL = strings.TrimSpace(x.PresentationURL)

	for _, icon := range x.Icons {
		d.Icons = append(d.Icons, upnp.Icon{
			MimeType: strings.TrimSpace(icon.MimeType),
			Width:    icon.Width,
			Height:   icon.Height,
			Depth:    icon.Depth,
			URL:      strings.TrimSpace(icon.URL),
		})
	}
	for _, s := range x.Services {
		d.AddService(&upnp.Service{
			ServiceType: strings.TrimSpace(s.ServiceType),
			ServiceID:   strings.TrimSpace(s.ServiceID),
			SCPDURL:     strings.TrimSpace(s.SCPDURL),
			ControlURL:  strings.TrimSpace(s.ControlURL),
			EventSubURL: strings.TrimSpace(s.EventSubURL),
		})
	}
	for _, child := range x.Devices {
		c, err := convert(child)
		if err != nil {
			return nil, err
		}
		d.AddDevice(c)
	}
	return d, nil
}
