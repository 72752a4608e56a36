package printer

import (
	"os/exec"
	"runtime"
	"strings"
)

// Info identifies one OS-registered printer.
type Info struct {
	Name string `json:"name"`
	Port string `json:"port"`
}

// ListPrinters enumerates printers registered with the operating system.
// Best effort: any failure yields an empty list, never an error, since
// this is a convenience lookup for the configuration UI.
func ListPrinters() []Info {
	if runtime.GOOS == "windows" {
		return listWindows()
	}
	return listCUPS()
}

// listCUPS parses `lpstat -v`, whose lines read
// "device for PRINTERNAME: usb://EPSON/TM-T20".
func listCUPS() []Info {
	out, err := exec.Command("lpstat", "-v").Output()
	if err != nil {
		return []Info{}
	}

	printers := []Info{}
	for _, line := range strings.Split(string(out), "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "device for ")
		if !ok {
			continue
		}
		name, uri, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}
		printers = append(printers, Info{
			Name: strings.TrimSpace(name),
			Port: strings.TrimSpace(uri),
		})
	}
	return printers
}

// listWindows shells out to PowerShell; one "Name|PortName" pair per line.
func listWindows() []Info {
	out, err := exec.Command("powershell", "-NoProfile", "-Command",
		`Get-Printer | ForEach-Object { "$($_.Name)|$($_.PortName)" }`).Output()
	if err != nil {
		return []Info{}
	}

	printers := []Info{}
	for _, line := range strings.Split(string(out), "\n") {
		name, port, ok := strings.Cut(strings.TrimSpace(line), "|")
		if !ok || name == "" {
			continue
		}
		printers = append(printers, Info{Name: name, Port: port})
	}
	return printers
}
