package main

import (
	"fmt"
	"os"
	"time"

	"github.com/lensesio/tableprinter"
	"github.com/tinwheel/herald"
)

type notificationRow struct {
	When        string `header:"when"`
	Coordinator string `header:"coordinator"`
	Order       string `header:"order"`
	Status      string `header:"status"`
	Content     string `header:"content"`
}

func printNotificationsForever(engine *herald.Engine, directory *herald.Directory, refreshRate int) {
	for {
		printNotifications(engine, directory)
		time.Sleep(time.Duration(refreshRate) * time.Second)
	}
}

func printNotifications(engine *herald.Engine, directory *herald.Directory) {
	events := engine.OrderedView()
	if len(events) == 0 {
		return
	}

	printer := tableprinter.New(os.Stdout)
	rows := make([]notificationRow, 0, len(events))

	for _, e := range events {
		alias := "?"
		if coordinator, known := directory.Resolve(e.Origin); known {
			alias = coordinator.Alias
		}
		status := "-"
		if code, known := e.Status(); known {
			status = fmt.Sprintf("%d", code)
		}
		rows = append(rows, notificationRow{
			When:        time.Unix(e.CreatedAt, 0).Format("Jan 02 15:04"),
			Coordinator: alias,
			Order:       e.OrderID(),
			Status:      status,
			Content:     e.Content,
		})
	}

	printer.BorderTop, printer.BorderBottom, printer.BorderLeft, printer.BorderRight = true, true, true, true
	printer.CenterSeparator = "│"
	printer.ColumnSeparator = "│"
	printer.RowSeparator = "─"

	printer.Print(rows)
}
