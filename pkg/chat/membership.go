package chat

import (
	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// Join adds who to c with no flags.
func (d *Directory) Join(c *Channel, who gamedb.DBRef) error {
	if !d.world.Valid(who) {
		return ErrBadObject
	}
	return d.idx.link(c, &Member{Who: who, sortKey: foldName(d.world.Name(who))})
}

// Leave removes who from c. If who was the channel's mogrifier, the
// mogrifier is cleared.
func (d *Directory) Leave(c *Channel, who gamedb.DBRef) error {
	if _, err := d.idx.unlink(c, who); err != nil {
		return err
	}
	if c.mogrifier == who {
		c.mogrifier = gamedb.Nothing
	}
	return nil
}

// EvictAll removes who from every channel, as when the object is destroyed.
// It returns the number of channels left.
func (d *Directory) EvictAll(who gamedb.DBRef) int {
	var chans []*Channel
	for c := range d.ChannelsOf(who) {
		chans = append(chans, c)
	}
	for _, c := range chans {
		d.Leave(c, who)
	}
	for c := range d.All() {
		if c.mogrifier == who {
			c.mogrifier = gamedb.Nothing
		}
	}
	return len(chans)
}

// Wipe removes every member of c and returns who they were.
func (d *Directory) Wipe(c *Channel) []gamedb.DBRef {
	var who []gamedb.DBRef
	for m := range c.Members() {
		who = append(who, m.Who)
	}
	for _, w := range who {
		d.idx.unlink(c, w)
	}
	return who
}

// Chown refunds the old creator the channel's cost, then hands the channel
// to a new creator at no cost.
func (d *Directory) Chown(c *Channel, to gamedb.DBRef) {
	d.world.Giveto(c.creator, c.cost)
	c.creator = to
	c.cost = 0
}

// ChownAll applies Chown to every channel created by from, returning how
// many changed hands.
func (d *Directory) ChownAll(from, to gamedb.DBRef) int {
	n := 0
	for c := range d.All() {
		if c.creator == from {
			d.Chown(c, to)
			n++
		}
	}
	return n
}
