package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/sagechat/sage/pkg/api"
)

const ragPage = "rag"

// openRAGManager shows the knowledge-base files attached to the current
// chat, with upload and delete.
func (a *App) openRAGManager() {
	chatID := a.state.ChatID()
	if chatID == "" {
		a.chat.appendNotice(noticeInfo, "Start a conversation before managing knowledge files.")
		return
	}

	m := newRAGModal(a, chatID)
	a.openModal(ragPage, m)
	m.refresh()
}

type ragModal struct {
	*tview.Flex

	app    *App
	chatID string
	list   *tview.List
	input  *tview.InputField
	status *tview.TextView
	files  []api.RAGFile
}

func newRAGModal(app *App, chatID string) *ragModal {
	m := &ragModal{
		Flex:   tview.NewFlex().SetDirection(tview.FlexRow),
		app:    app,
		chatID: chatID,
		list:   tview.NewList().ShowSecondaryText(false),
		status: tview.NewTextView().SetDynamicColors(true),
	}

	m.input = tview.NewInputField().SetLabel("upload path: ")
	m.input.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter {
			if path := m.input.GetText(); path != "" {
				m.input.SetText("")
				m.upload(path)
			}
			return nil
		}
		return event
	})

	m.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEscape:
			m.app.closeModal(ragPage)
			return nil
		case event.Rune() == 'd' && m.list.HasFocus():
			m.deleteSelected()
			return nil
		case event.Key() == tcell.KeyTab:
			if m.list.HasFocus() {
				m.app.ui.SetFocus(m.input)
			} else {
				m.app.ui.SetFocus(m.list)
			}
			return nil
		}
		return event
	})

	m.SetBorder(true).SetTitle(" Knowledge Files ")
	m.status.SetText("[gray]enter path to upload  d delete  tab switch  esc close[-]")
	m.AddItem(m.list, 0, 1, true)
	m.AddItem(m.input, 1, 0, false)
	m.AddItem(m.status, 1, 0, false)
	return m
}

func (m *ragModal) setStatus(text string) {
	m.status.SetText(text)
}

// refresh reloads the file list from the backend.
func (m *ragModal) refresh() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		files, err := m.app.client.ListRAGFiles(ctx, m.chatID)
		m.app.queue(func() {
			if err != nil {
				m.app.log.Error("listing rag files", "error", err)
				m.setStatus("[red]Could not load files: " + tview.Escape(err.Error()) + "[-]")
				return
			}
			m.files = files
			m.list.Clear()
			for _, f := range files {
				m.list.AddItem(f.Name, "", 0, nil)
			}
			m.setStatus(fmt.Sprintf("[gray]%d file(s)[-]", len(files)))
		})
	}()
}

func (m *ragModal) upload(path string) {
	go func() {
		f, err := os.Open(path)
		if err != nil {
			m.app.queue(func() {
				m.setStatus("[red]Could not open file: " + tview.Escape(err.Error()) + "[-]")
			})
			return
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		uploaded, err := m.app.client.UploadRAGFile(ctx, m.chatID, filepath.Base(path), f)
		m.app.queue(func() {
			if err != nil {
				m.app.log.Error("uploading rag file", "error", err)
				m.setStatus("[red]Upload failed: " + tview.Escape(err.Error()) + "[-]")
				return
			}
			m.setStatus("[green]Uploaded " + tview.Escape(uploaded.Name) + "[-]")
			m.refresh()
		})
	}()
}

func (m *ragModal) deleteSelected() {
	index := m.list.GetCurrentItem()
	if index < 0 || index >= len(m.files) {
		return
	}
	file := m.files[index]

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := m.app.client.DeleteRAGFile(ctx, m.chatID, file.ID)
		m.app.queue(func() {
			if err != nil {
				m.app.log.Error("deleting rag file", "file_id", file.ID, "error", err)
				m.setStatus("[red]Delete failed: " + tview.Escape(err.Error()) + "[-]")
				return
			}
			m.setStatus("[green]Deleted " + tview.Escape(file.Name) + "[-]")
			m.refresh()
		})
	}()
}
