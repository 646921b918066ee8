package server

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchConf starts an fsnotify watcher on the config file's directory and
// reloads the configuration whenever the file or one of its includes is
// written. The watcher stops with the server.
func (s *Server) WatchConf(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	tracked := s.trackedConfFiles(path)
	dirs := make(map[string]bool)
	for f := range tracked {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return err
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-s.stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if !tracked[filepath.Clean(event.Name)] {
					continue
				}
				log.Printf("conf: %s changed, reloading", event.Name)
				if err := s.ReloadConf(path); err != nil {
					log.Printf("conf: reload failed: %v", err)
					continue
				}
				tracked = s.trackedConfFiles(path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("conf: watcher error: %v", err)
			}
		}
	}()
	log.Printf("conf: watching %s for changes", path)
	return nil
}

// trackedConfFiles returns the config file and its current includes.
func (s *Server) trackedConfFiles(path string) map[string]bool {
	tracked := map[string]bool{filepath.Clean(path): true}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inc := range s.Conf.Includes {
		tracked[filepath.Clean(inc)] = true
	}
	return tracked
}
