package commands

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/tinoosan/ghusers/internal/data"
)

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func printUsers(w io.Writer, users data.Users) {
	table := newTable(w)
	table.SetHeader([]string{"id", "login", "type", "admin"})
	for _, u := range users {
		table.Append([]string{strconv.FormatInt(u.ID, 10), u.Login, u.Type, strconv.FormatBool(u.SiteAdmin)})
	}
	table.Render()
}

func printProfile(w io.Writer, p *data.Profile) {
	table := newTable(w)
	table.SetColumnSeparator(":")
	rows := [][2]string{
		{"ID", strconv.FormatInt(p.ID, 10)},
		{"Login", p.Login},
		{"Name", p.Name},
		{"Company", p.Company},
		{"Blog", p.Blog},
		{"Location", p.Location},
		{"Bio", p.Bio},
		{"Followers", strconv.Itoa(p.Followers)},
		{"Following", strconv.Itoa(p.Following)},
		{"Public repos", strconv.Itoa(p.PublicRepos)},
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		table.Append([]string{r[0], r[1]})
	}
	table.Render()
}
